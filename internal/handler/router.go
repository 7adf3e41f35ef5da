package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/podcatch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// フィード取り込み・読み取り
	IngestService IngestServiceInterface
	FeedFinder    FeedFinder

	// エピソード読み取り
	EpisodeService EpisodeServiceInterface

	// メトリクス公開用ハンドラー（nil可）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Session → RateLimit(General)
//
// ヘルスチェックとメトリクスはセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	feedHandler := NewFeedHandler(deps.IngestService, deps.FeedFinder)
	episodeHandler := NewEpisodeHandler(deps.EpisodeService)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// CSRFトークン取得（セッション確立前にフロントエンドが取得する）
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/feeds", func(r chi.Router) {
			// 取り込みとプレビューは外部サイトへのフェッチを伴うため専用レート制限を追加
			r.With(deps.RateLimiter.IngestMiddleware()).Post("/", feedHandler.SubmitFeed)
			r.With(deps.RateLimiter.IngestMiddleware()).Post("/preview", feedHandler.PreviewFeed)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", feedHandler.GetFeed)

				// GET /api/feeds/{id}/episodes - フィードごとのエピソード一覧
				r.Get("/episodes", episodeHandler.ListEpisodes)
			})
		})
	})

	return r
}
