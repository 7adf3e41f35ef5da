package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/podcatch/internal/episode"
	"github.com/hitoshi/podcatch/internal/model"
)

// EpisodeServiceInterface はエピソードハンドラーが必要とするサービスインターフェース。
type EpisodeServiceInterface interface {
	// List は指定フィードのエピソードをID昇順で1ページ分取得する。
	List(ctx context.Context, feedID int64, offset int64) (*episode.Page, error)
}

// EpisodeHandler はエピソード読み取りのHTTPハンドラー。
type EpisodeHandler struct {
	service EpisodeServiceInterface
}

// NewEpisodeHandler はEpisodeHandlerを生成する。
func NewEpisodeHandler(service EpisodeServiceInterface) *EpisodeHandler {
	return &EpisodeHandler{service: service}
}

// episodeResponse はエピソード情報のAPIレスポンス。
type episodeResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ShowNotes   string     `json:"show_notes"`
	Published   *time.Time `json:"published,omitempty"`
	Keywords    []string   `json:"keywords,omitempty"`
	Duration    *int64     `json:"duration,omitempty"`
	Explicit    bool       `json:"explicit"`
	LinkWeb     string     `json:"link_web,omitempty"`
	MediaURL    string     `json:"media_url"`
	MediaLength int64      `json:"media_length"`
	MimeType    string     `json:"mime_type"`
}

// episodeListResponse はエピソード一覧のAPIレスポンス。
// next_offsetがnullでない場合、その値をoffsetに渡すことで続きを取得できる。
type episodeListResponse struct {
	Items      []episodeResponse `json:"items"`
	NextOffset *int64            `json:"next_offset"`
}

// ListEpisodes はフィードのエピソード一覧を取得する。
// GET /api/feeds/:id/episodes?offset=N
func (h *EpisodeHandler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	feedID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("フィードIDが数値ではありません"))
		return
	}

	var offset int64
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || offset < 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("offsetが不正です"))
			return
		}
	}

	page, err := h.service.List(r.Context(), feedID, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]episodeResponse, 0, len(page.Episodes))
	for _, ep := range page.Episodes {
		items = append(items, toEpisodeResponse(ep))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(episodeListResponse{
		Items:      items,
		NextOffset: page.NextOffset,
	})
}

// toEpisodeResponse はmodel.EpisodeからAPIレスポンスに変換する。
func toEpisodeResponse(ep model.Episode) episodeResponse {
	return episodeResponse{
		ID:          ep.ID,
		Title:       ep.Title,
		Description: ep.Description,
		ShowNotes:   ep.ShowNotes,
		Published:   ep.Published,
		Keywords:    ep.Keywords,
		Duration:    ep.Duration,
		Explicit:    ep.Explicit,
		LinkWeb:     ep.LinkWeb,
		MediaURL:    ep.Enclosure.MediaURL,
		MediaLength: ep.Enclosure.MediaLength,
		MimeType:    ep.Enclosure.MimeType,
	}
}
