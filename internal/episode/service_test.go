package episode

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/podcatch/internal/model"
)

// mockFeedRepo はテスト用のFeedRepositoryモック。
type mockFeedRepo struct {
	findByIDFn func(ctx context.Context, id int64) (*model.Feed, error)
}

func (m *mockFeedRepo) FindByID(ctx context.Context, id int64) (*model.Feed, error) {
	return m.findByIDFn(ctx, id)
}

// mockEpisodeRepo はテスト用のEpisodeRepositoryモック。
type mockEpisodeRepo struct {
	listByFeedFn  func(ctx context.Context, feedID, afterID int64, limit int) ([]model.Episode, error)
	maxIDByFeedFn func(ctx context.Context, feedID int64) (int64, error)
}

func (m *mockEpisodeRepo) ListByFeed(ctx context.Context, feedID, afterID int64, limit int) ([]model.Episode, error) {
	return m.listByFeedFn(ctx, feedID, afterID, limit)
}

func (m *mockEpisodeRepo) MaxIDByFeed(ctx context.Context, feedID int64) (int64, error) {
	if m.maxIDByFeedFn != nil {
		return m.maxIDByFeedFn(ctx, feedID)
	}
	return 0, nil
}

func existingFeedRepo() *mockFeedRepo {
	return &mockFeedRepo{
		findByIDFn: func(_ context.Context, id int64) (*model.Feed, error) {
			return &model.Feed{ID: id, Title: "テストフィード"}, nil
		},
	}
}

// TestList_Success はエピソード一覧取得の正常系をテストする。
func TestList_Success(t *testing.T) {
	episodes := []model.Episode{
		{ID: 1, FeedID: 5, Title: "第1回"},
		{ID: 2, FeedID: 5, Title: "第2回"},
	}
	var gotAfterID int64
	var gotLimit int

	episodeRepo := &mockEpisodeRepo{
		listByFeedFn: func(_ context.Context, feedID, afterID int64, limit int) ([]model.Episode, error) {
			if feedID != 5 {
				t.Errorf("feedID = %d, want 5", feedID)
			}
			gotAfterID = afterID
			gotLimit = limit
			return episodes, nil
		},
		maxIDByFeedFn: func(_ context.Context, _ int64) (int64, error) {
			return 2, nil
		},
	}
	svc := NewEpisodeService(existingFeedRepo(), episodeRepo)

	page, err := svc.List(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(page.Episodes) != 2 {
		t.Errorf("len(Episodes) = %d, want 2", len(page.Episodes))
	}
	if gotAfterID != 0 {
		t.Errorf("afterID = %d, want 0", gotAfterID)
	}
	if gotLimit != PageSize {
		t.Errorf("limit = %d, want %d", gotLimit, PageSize)
	}
	if page.NextOffset != nil {
		t.Errorf("1ページに満たない場合NextOffsetはnilであるべき: %d", *page.NextOffset)
	}
}

// TestList_OffsetForwarded はoffsetがリポジトリにそのまま渡されることをテストする。
func TestList_OffsetForwarded(t *testing.T) {
	episodeRepo := &mockEpisodeRepo{
		listByFeedFn: func(_ context.Context, _, afterID int64, _ int) ([]model.Episode, error) {
			if afterID != 250 {
				t.Errorf("afterID = %d, want 250", afterID)
			}
			return nil, nil
		},
	}
	svc := NewEpisodeService(existingFeedRepo(), episodeRepo)

	if _, err := svc.List(context.Background(), 5, 250); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
}

// TestList_FullPageSetsCursor は満ページかつ続きがある場合にNextOffsetが
// 設定されることをテストする。
func TestList_FullPageSetsCursor(t *testing.T) {
	full := make([]model.Episode, PageSize)
	for i := range full {
		full[i] = model.Episode{ID: int64(i + 1)}
	}
	episodeRepo := &mockEpisodeRepo{
		listByFeedFn: func(_ context.Context, _, _ int64, _ int) ([]model.Episode, error) {
			return full, nil
		},
		maxIDByFeedFn: func(_ context.Context, _ int64) (int64, error) {
			return 120, nil
		},
	}
	svc := NewEpisodeService(existingFeedRepo(), episodeRepo)

	page, err := svc.List(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.NextOffset == nil {
		t.Fatal("続きがある場合NextOffsetが設定されるべき")
	}
	if *page.NextOffset != int64(PageSize) {
		t.Errorf("NextOffset = %d, want %d", *page.NextOffset, PageSize)
	}
}

// TestList_FeedNotFound は存在しないフィードに対してFEED_NOT_FOUNDを返すことをテストする。
func TestList_FeedNotFound(t *testing.T) {
	feedRepo := &mockFeedRepo{
		findByIDFn: func(_ context.Context, _ int64) (*model.Feed, error) {
			return nil, nil
		},
	}
	listCalled := false
	episodeRepo := &mockEpisodeRepo{
		listByFeedFn: func(_ context.Context, _, _ int64, _ int) ([]model.Episode, error) {
			listCalled = true
			return nil, nil
		},
	}
	svc := NewEpisodeService(feedRepo, episodeRepo)

	_, err := svc.List(context.Background(), 999, 0)
	if err == nil {
		t.Fatal("存在しないフィードはエラーを返すべき")
	}

	var ingestErr *model.IngestError
	if !errors.As(err, &ingestErr) || ingestErr.Code != model.ErrCodeFeedNotFound {
		t.Errorf("FEED_NOT_FOUNDエラーであるべき: %v", err)
	}
	if listCalled {
		t.Error("フィード未存在時にエピソード取得が呼ばれるべきではない")
	}
}

// TestList_FeedRepoError はフィード取得失敗時にエラーを伝播することをテストする。
func TestList_FeedRepoError(t *testing.T) {
	feedRepo := &mockFeedRepo{
		findByIDFn: func(_ context.Context, _ int64) (*model.Feed, error) {
			return nil, errors.New("db error")
		},
	}
	svc := NewEpisodeService(feedRepo, &mockEpisodeRepo{})

	if _, err := svc.List(context.Background(), 5, 0); err == nil {
		t.Fatal("フィード取得失敗時はエラーを返すべき")
	}
}

// TestList_EpisodeRepoError はエピソード取得失敗時にエラーを伝播することをテストする。
func TestList_EpisodeRepoError(t *testing.T) {
	episodeRepo := &mockEpisodeRepo{
		listByFeedFn: func(_ context.Context, _, _ int64, _ int) ([]model.Episode, error) {
			return nil, errors.New("db error")
		},
	}
	svc := NewEpisodeService(existingFeedRepo(), episodeRepo)

	if _, err := svc.List(context.Background(), 5, 0); err == nil {
		t.Fatal("エピソード取得失敗時はエラーを返すべき")
	}
}
