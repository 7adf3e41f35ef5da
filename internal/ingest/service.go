// Package ingest はポッドキャストフィードの取り込みパイプラインを提供する。
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/podcatch/internal/metrics"
	"github.com/hitoshi/podcatch/internal/model"
	"github.com/hitoshi/podcatch/internal/repository"
)

// Resolver は提出URLからフィードURLとドキュメント本体を解決するインターフェース。
// テスタビリティのためFeedDetectorを抽象化する。
type Resolver interface {
	Resolve(ctx context.Context, inputURL string) (feedURL string, body []byte, err error)
}

// Parser は生ドキュメントを中間表現に変換するインターフェース。
type Parser interface {
	Parse(raw []byte, sourceURL string) (*model.FeedDocument, error)
}

// ImageCacher はカバー画像のキャッシュインターフェース。
type ImageCacher interface {
	Cache(ctx context.Context, imageURL string) (*model.CachedImage, error)
}

// IngestService はフィード取り込みのサービス層。
// 検出 → パース → 画像キャッシュ → 永続化のフローを統括する。
type IngestService struct {
	repo     repository.IngestRepository
	detector Resolver
	parser   Parser
	images   ImageCacher
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewIngestService はIngestServiceの新しいインスタンスを生成する。
// imagesはnil可で、その場合は画像キャッシュをスキップする。
func NewIngestService(
	repo repository.IngestRepository,
	detector Resolver,
	parser Parser,
	images ImageCacher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		repo:     repo,
		detector: detector,
		parser:   parser,
		images:   images,
		metrics:  collector,
		logger:   logger,
	}
}

// Ingest は提出URLからフィードを取り込み、新しいフィードIDを返す。
// フロー: フィード検出 → パース → 重複事前チェック → 画像キャッシュ → 永続化
//
// 画像キャッシュの失敗は取り込み全体を失敗させない。
// 永続化は単一トランザクションで行われるため、途中で失敗した場合に
// 部分的なフィードが残ることはない。
func (s *IngestService) Ingest(ctx context.Context, submitterID int64, inputURL string) (int64, error) {
	start := time.Now()

	feedURL, body, err := s.detector.Resolve(ctx, inputURL)
	if err != nil {
		return 0, s.fail(inputURL, err)
	}

	doc, err := s.parser.Parse(body, feedURL)
	if err != nil {
		s.metrics.RecordParseFailure()
		return 0, s.fail(feedURL, err)
	}

	// 重複の事前チェック。一意制約が最終的な砦であり、
	// ここでの検出は取り込み処理を早期に打ち切るためのもの。
	dup, err := s.repo.FindDuplicate(ctx, doc.Title, feedURL)
	if err != nil {
		return 0, s.fail(feedURL, err)
	}
	if dup != "" {
		return 0, s.fail(feedURL, model.NewDuplicateFeedError(dup))
	}

	img := s.cacheImage(ctx, doc.ImageURL)

	feedID, err := s.repo.SaveFeed(ctx, doc, submitterID, img)
	if err != nil {
		return 0, s.fail(feedURL, err)
	}

	s.metrics.RecordIngestSuccess()
	s.metrics.RecordEpisodesInserted(len(doc.Episodes))
	s.metrics.RecordEpisodesDropped(len(doc.Dropped))
	s.metrics.RecordIngestLatency(time.Since(start))

	s.logger.Info("フィードを取り込みました",
		slog.Int64("feed_id", feedID),
		slog.String("feed_url", feedURL),
		slog.Int("episodes", len(doc.Episodes)),
		slog.Int("dropped", len(doc.Dropped)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return feedID, nil
}

// Preview は提出URLのフィードをパースして内容を返すが、永続化は行わない。
// existsは同一タイトルまたはURLのフィードが既に登録済みかを示す。
func (s *IngestService) Preview(ctx context.Context, inputURL string) (doc *model.FeedDocument, exists bool, err error) {
	feedURL, body, err := s.detector.Resolve(ctx, inputURL)
	if err != nil {
		return nil, false, s.fail(inputURL, err)
	}

	doc, err = s.parser.Parse(body, feedURL)
	if err != nil {
		s.metrics.RecordParseFailure()
		return nil, false, s.fail(feedURL, err)
	}

	dup, err := s.repo.FindDuplicate(ctx, doc.Title, feedURL)
	if err != nil {
		return nil, false, s.fail(feedURL, err)
	}

	return doc, dup != "", nil
}

// cacheImage はカバー画像をキャッシュする。失敗してもnilを返すだけで、
// 取り込みは画像なしで継続される。
func (s *IngestService) cacheImage(ctx context.Context, imageURL string) *model.CachedImage {
	if s.images == nil || imageURL == "" {
		return nil
	}

	img, err := s.images.Cache(ctx, imageURL)
	if err != nil {
		s.logger.Warn("カバー画像のキャッシュに失敗しました（画像なしで継続）",
			slog.String("image_url", imageURL),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return img
}

// fail は失敗メトリクスを記録し、呼び出し元に返すエラーを決定する。
// IngestError以外のエラーは詳細をログに記録した上で、
// 原因文字列を含まない内部エラーに変換する。
func (s *IngestService) fail(url string, err error) error {
	var ingestErr *model.IngestError
	if errors.As(err, &ingestErr) {
		s.metrics.RecordIngestFailure(ingestErr.Code)
		return ingestErr
	}

	s.logger.Error("取り込み中に内部エラーが発生しました",
		slog.String("url", url),
		slog.String("error", err.Error()),
	)
	s.metrics.RecordIngestFailure(model.ErrCodeInternal)
	return model.NewInternalError()
}
