package episode

import (
	"context"
	"fmt"

	"github.com/hitoshi/podcatch/internal/model"
	"github.com/hitoshi/podcatch/internal/repository"
)

// Page はエピソード一覧の1ページ分の結果を表す。
// NextOffsetがnilでない場合、その値を次回リクエストのoffsetに
// 渡すことで続きを取得できる。
type Page struct {
	Episodes   []model.Episode
	NextOffset *int64
}

// EpisodeService はエピソード読み取りのサービス層。
type EpisodeService struct {
	feedRepo    repository.FeedRepository
	episodeRepo repository.EpisodeRepository
}

// NewEpisodeService はEpisodeServiceの新しいインスタンスを生成する。
func NewEpisodeService(feedRepo repository.FeedRepository, episodeRepo repository.EpisodeRepository) *EpisodeService {
	return &EpisodeService{
		feedRepo:    feedRepo,
		episodeRepo: episodeRepo,
	}
}

// List は指定フィードのエピソードをID昇順で1ページ分取得する。
// offsetは前回のページ末尾のエピソードID（初回は0）。
func (s *EpisodeService) List(ctx context.Context, feedID int64, offset int64) (*Page, error) {
	feed, err := s.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError(feedID)
	}

	episodes, err := s.episodeRepo.ListByFeed(ctx, feedID, offset, PageSize)
	if err != nil {
		return nil, fmt.Errorf("エピソードの取得に失敗しました: %w", err)
	}

	maxID, err := s.episodeRepo.MaxIDByFeed(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("エピソードIDの取得に失敗しました: %w", err)
	}

	return &Page{
		Episodes:   episodes,
		NextOffset: NextOffset(episodes, maxID),
	}, nil
}
