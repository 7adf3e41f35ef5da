package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/podcatch/internal/episode"
	"github.com/hitoshi/podcatch/internal/model"
)

// mockEpisodeService はEpisodeServiceInterfaceのモック実装。
type mockEpisodeService struct {
	listFn func(ctx context.Context, feedID int64, offset int64) (*episode.Page, error)
}

func (m *mockEpisodeService) List(ctx context.Context, feedID int64, offset int64) (*episode.Page, error) {
	if m.listFn != nil {
		return m.listFn(ctx, feedID, offset)
	}
	return &episode.Page{Episodes: []model.Episode{}}, nil
}

// --- GET /api/feeds/:id/episodes テスト ---

func TestEpisodeHandler_ListEpisodes_Success(t *testing.T) {
	published := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	duration := int64(1830)
	nextOffset := int64(120)

	svc := &mockEpisodeService{
		listFn: func(ctx context.Context, feedID int64, offset int64) (*episode.Page, error) {
			if feedID != 7 {
				t.Errorf("feedID = %d, want %d", feedID, 7)
			}
			if offset != 0 {
				t.Errorf("offset = %d, want 0", offset)
			}
			return &episode.Page{
				Episodes: []model.Episode{
					{
						ID:          101,
						FeedID:      7,
						Title:       "第1回",
						Description: "初回の説明",
						ShowNotes:   "<p>ショーノート</p>",
						Published:   &published,
						Keywords:    []string{"tech", "go"},
						Duration:    &duration,
						Explicit:    false,
						Enclosure: model.Enclosure{
							MediaURL:    "https://example.com/ep1.mp3",
							MediaLength: 12345678,
							MimeType:    "audio/mpeg",
						},
					},
				},
				NextOffset: &nextOffset,
			}, nil
		},
	}
	h := NewEpisodeHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/7/episodes", nil)
	req = withChiURLParam(req, "id", "7")
	w := httptest.NewRecorder()

	h.ListEpisodes(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result struct {
		Items []map[string]interface{} `json:"items"`
		Next  *int64                   `json:"next_offset"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(result.Items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(result.Items))
	}
	item := result.Items[0]
	if item["id"] != float64(101) {
		t.Errorf("id = %v, want 101", item["id"])
	}
	if item["title"] != "第1回" {
		t.Errorf("title = %v, want %q", item["title"], "第1回")
	}
	if item["media_url"] != "https://example.com/ep1.mp3" {
		t.Errorf("media_url = %v, want %q", item["media_url"], "https://example.com/ep1.mp3")
	}
	if item["mime_type"] != "audio/mpeg" {
		t.Errorf("mime_type = %v, want %q", item["mime_type"], "audio/mpeg")
	}
	if item["duration"] != float64(1830) {
		t.Errorf("duration = %v, want 1830", item["duration"])
	}

	if result.Next == nil || *result.Next != 120 {
		t.Errorf("next_offset = %v, want 120", result.Next)
	}
}

func TestEpisodeHandler_ListEpisodes_OffsetForwarded(t *testing.T) {
	var gotOffset int64 = -1
	svc := &mockEpisodeService{
		listFn: func(ctx context.Context, feedID int64, offset int64) (*episode.Page, error) {
			gotOffset = offset
			return &episode.Page{Episodes: []model.Episode{}}, nil
		},
	}
	h := NewEpisodeHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/7/episodes?offset=250", nil)
	req = withChiURLParam(req, "id", "7")
	w := httptest.NewRecorder()

	h.ListEpisodes(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotOffset != 250 {
		t.Errorf("offset = %d, want 250", gotOffset)
	}

	// 末尾ページではnext_offsetはnullになる
	var result map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(result["next_offset"]) != "null" {
		t.Errorf("next_offset = %s, want null", result["next_offset"])
	}
}

func TestEpisodeHandler_ListEpisodes_InvalidOffset(t *testing.T) {
	tests := []struct {
		name   string
		offset string
	}{
		{name: "non-numeric", offset: "abc"},
		{name: "negative", offset: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEpisodeHandler(&mockEpisodeService{})

			req := httptest.NewRequest(http.MethodGet, "/api/feeds/7/episodes?offset="+tt.offset, nil)
			req = withChiURLParam(req, "id", "7")
			w := httptest.NewRecorder()

			h.ListEpisodes(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestEpisodeHandler_ListEpisodes_InvalidFeedID(t *testing.T) {
	h := NewEpisodeHandler(&mockEpisodeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/xyz/episodes", nil)
	req = withChiURLParam(req, "id", "xyz")
	w := httptest.NewRecorder()

	h.ListEpisodes(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestEpisodeHandler_ListEpisodes_FeedNotFound(t *testing.T) {
	svc := &mockEpisodeService{
		listFn: func(ctx context.Context, feedID int64, offset int64) (*episode.Page, error) {
			return nil, model.NewFeedNotFoundError(feedID)
		},
	}
	h := NewEpisodeHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/999/episodes", nil)
	req = withChiURLParam(req, "id", "999")
	w := httptest.NewRecorder()

	h.ListEpisodes(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeFeedNotFound {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeFeedNotFound)
	}
}

func TestEpisodeHandler_ListEpisodes_EmptyFeed(t *testing.T) {
	h := NewEpisodeHandler(&mockEpisodeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/7/episodes", nil)
	req = withChiURLParam(req, "id", "7")
	w := httptest.NewRecorder()

	h.ListEpisodes(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	// itemsはnullではなく空配列で返す
	var result map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(result["items"]) != "[]" {
		t.Errorf("items = %s, want []", result["items"])
	}
}
