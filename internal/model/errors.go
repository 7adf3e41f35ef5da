// Package model はドメインモデルを定義する。
package model

import "fmt"

// IngestError は取り込みパイプラインの統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type IngestError struct {
	Code     string         // エラーコード
	Message  string         // エラーメッセージ
	Category string         // カテゴリ: validation, feed, conflict, system
	Action   string         // ユーザー向け対処方法
	Field    DuplicateField // Duplicateエラーの場合のみ設定される違反フィールド
}

// Error はerrorインターフェースを実装する。
func (e *IngestError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// DuplicateField は一意制約違反が発生したフィードのフィールドを表す。
type DuplicateField string

const (
	// DuplicateTitle はタイトルの一意制約違反。
	DuplicateTitle DuplicateField = "title"
	// DuplicateURL はフィードURLの一意制約違反。
	DuplicateURL DuplicateField = "url"
	// DuplicateImage はキャッシュ画像の一意制約違反。
	DuplicateImage DuplicateField = "image"
)

// 定義済みエラーコード
const (
	ErrCodeInvalidFeed     = "INVALID_FEED"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeFeedNotDetected = "FEED_NOT_DETECTED"
	ErrCodeDuplicateFeed   = "DUPLICATE_FEED"
	ErrCodeFeedNotFound    = "FEED_NOT_FOUND"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewInvalidFeedError はシンジケーションXMLとしてパースできない
// ドキュメントに対するエラーを生成する。リトライ対象ではなく、
// 提出者への入力拒否として通知される。
func NewInvalidFeedError() *IngestError {
	return &IngestError{
		Code:     ErrCodeInvalidFeed,
		Message:  "RSSフィードの解析に失敗しました。",
		Category: "feed",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewInvalidURLError は不正なURL入力に対するエラーを生成する。
func NewInvalidURLError(detail string) *IngestError {
	return &IngestError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("URLが不正です: %s", detail),
		Category: "validation",
		Action:   "http/httpsで始まる正しいURLを入力してください。",
	}
}

// NewSSRFBlockedError はSSRF防止によりブロックされたURLに対するエラーを生成する。
// ブロック理由の詳細は意図的に含めない。
func NewSSRFBlockedError() *IngestError {
	return &IngestError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "このURLへのアクセスは許可されていません。",
		Category: "validation",
		Action:   "公開されているフィードのURLを指定してください。",
	}
}

// NewFeedNotDetectedError は指定URLからフィードを検出できなかったエラーを生成する。
func NewFeedNotDetectedError(url string) *IngestError {
	return &IngestError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("フィードを検出できませんでした: %s", url),
		Category: "feed",
		Action:   "RSS/AtomフィードのURL、またはフィードリンクを含むページのURLを指定してください。",
	}
}

// NewFetchFailedError はフィードドキュメントの取得失敗エラーを生成する。
func NewFetchFailedError(url string) *IngestError {
	return &IngestError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", url),
		Category: "feed",
		Action:   "取得元URLに到達できない可能性があります。URLを確認し、しばらく待ってから再度お試しください。",
	}
}

// NewDuplicateFeedError は一意制約違反を表す型付きエラーを生成する。
// ユーザーが訂正可能な競合として通知され、内部エラーにはならない。
func NewDuplicateFeedError(field DuplicateField) *IngestError {
	return &IngestError{
		Code:     ErrCodeDuplicateFeed,
		Message:  fmt.Sprintf("この%sは既に登録されています。", duplicateFieldLabel(field)),
		Category: "conflict",
		Action:   "登録済みフィードの一覧を確認してください。",
		Field:    field,
	}
}

// NewFeedNotFoundError はフィード未検出エラーを生成する。
func NewFeedNotFoundError(feedID int64) *IngestError {
	return &IngestError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %d", feedID),
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はサーバー側のログにのみ記録し、呼び出し元には
// 原因文字列を含まない不透明なエラーのみを返す。
func NewInternalError() *IngestError {
	return &IngestError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// duplicateFieldLabel は重複フィールドの表示名を返す。
func duplicateFieldLabel(field DuplicateField) string {
	switch field {
	case DuplicateTitle:
		return "タイトル"
	case DuplicateURL:
		return "フィードURL"
	case DuplicateImage:
		return "画像"
	default:
		return string(field)
	}
}
