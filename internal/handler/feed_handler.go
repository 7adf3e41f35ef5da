// Package handler はHTTP APIのハンドラー層を提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/podcatch/internal/middleware"
	"github.com/hitoshi/podcatch/internal/model"
)

// IngestServiceInterface はフィードハンドラーが必要とする取り込みサービスのインターフェース。
type IngestServiceInterface interface {
	// Ingest は提出URLからフィードを取り込み、新しいフィードIDを返す。
	Ingest(ctx context.Context, submitterID int64, inputURL string) (int64, error)
	// Preview は提出URLのフィードをパースして内容を返すが、永続化は行わない。
	Preview(ctx context.Context, inputURL string) (*model.FeedDocument, bool, error)
}

// FeedFinder はフィード取得のインターフェース。
// repository.FeedRepositoryの部分集合として定義する。
type FeedFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Feed, error)
}

// FeedHandler はフィード管理のHTTPハンドラー。
type FeedHandler struct {
	ingest IngestServiceInterface
	feeds  FeedFinder
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(ingest IngestServiceInterface, feeds FeedFinder) *FeedHandler {
	return &FeedHandler{
		ingest: ingest,
		feeds:  feeds,
	}
}

// submitFeedRequest はフィード提出リクエストのボディ。
type submitFeedRequest struct {
	URL string `json:"url"`
}

// submitFeedResponse はフィード提出成功のレスポンス。
type submitFeedResponse struct {
	FeedID int64 `json:"feed_id"`
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Subtitle    string    `json:"subtitle,omitempty"`
	URL         string    `json:"url"`
	LinkWeb     string    `json:"link_web,omitempty"`
	Status      string    `json:"status"`
	Submitted   time.Time `json:"submitted"`
}

// previewResponse はフィードプレビューのレスポンス。
type previewResponse struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Subtitle     string   `json:"subtitle,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	LanguageCode string   `json:"language_code,omitempty"`
	Categories   []string `json:"categories"`
	EpisodeCount int      `json:"episode_count"`
	Exists       bool     `json:"exists"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// SubmitFeed はフィード提出を処理する。
// POST /api/feeds
func (h *FeedHandler) SubmitFeed(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	req, ok := decodeSubmitRequest(w, r)
	if !ok {
		return
	}

	feedID, err := h.ingest.Ingest(r.Context(), accountID, req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(submitFeedResponse{FeedID: feedID})
}

// PreviewFeed はフィードの内容を取り込まずに確認する。
// POST /api/feeds/preview
func (h *FeedHandler) PreviewFeed(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.AccountIDFromContext(r.Context()); err != nil {
		writeUnauthorized(w)
		return
	}

	req, ok := decodeSubmitRequest(w, r)
	if !ok {
		return
	}

	doc, exists, err := h.ingest.Preview(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPreviewResponse(doc, exists))
}

// GetFeed はフィード詳細を取得する。
// GET /api/feeds/:id
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	feedID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("フィードIDが数値ではありません"))
		return
	}

	feed, err := h.feeds.FindByID(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if feed == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewFeedNotFoundError(feedID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toFeedResponse(feed))
}

// --- ヘルパー関数 ---

// decodeSubmitRequest はフィード提出リクエストのボディを読み取り検証する。
func decodeSubmitRequest(w http.ResponseWriter, r *http.Request) (submitFeedRequest, bool) {
	var req submitFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.IngestError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return req, false
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return req, false
	}

	return req, true
}

// toFeedResponse はmodel.FeedからAPIレスポンスに変換する。
func toFeedResponse(feed *model.Feed) feedResponse {
	return feedResponse{
		ID:          feed.ID,
		Title:       feed.Title,
		Description: feed.Description,
		Subtitle:    feed.Subtitle,
		URL:         feed.URL,
		LinkWeb:     feed.LinkWeb,
		Status:      string(feed.Status),
		Submitted:   feed.Submitted,
	}
}

// toPreviewResponse はFeedDocumentからプレビューレスポンスに変換する。
func toPreviewResponse(doc *model.FeedDocument, exists bool) previewResponse {
	categories := doc.Categories.Parents()
	if categories == nil {
		categories = []string{}
	}
	return previewResponse{
		Title:        doc.Title,
		Description:  doc.Description,
		Subtitle:     doc.Subtitle,
		ImageURL:     doc.ImageURL,
		LanguageCode: doc.LanguageCode,
		Categories:   categories,
		EpisodeCount: len(doc.Episodes),
		Exists:       exists,
	}
}

// writeUnauthorized は401レスポンスを統一フォーマットで書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.IngestError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, ingestErr *model.IngestError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     ingestErr.Code,
		Message:  ingestErr.Message,
		Category: ingestErr.Category,
		Action:   ingestErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var ingestErr *model.IngestError
	if errors.As(err, &ingestErr) {
		writeAPIErrorResponse(w, mapErrorToHTTPStatus(ingestErr), ingestErr)
		return
	}

	// IngestError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapErrorToHTTPStatus はエラーコードからHTTPステータスコードにマッピングする。
func mapErrorToHTTPStatus(ingestErr *model.IngestError) int {
	switch ingestErr.Code {
	case model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeInvalidFeed, model.ErrCodeFeedNotDetected:
		return http.StatusUnprocessableEntity
	case model.ErrCodeDuplicateFeed:
		return http.StatusConflict
	case model.ErrCodeFeedNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
