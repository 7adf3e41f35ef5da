// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/podcatch/internal/model"
)

// IngestRepository はフィード取り込みトランザクションの永続化インターフェース。
type IngestRepository interface {
	// SaveFeed は1回の取り込みを単一トランザクションとして永続化する。
	// 参照エンティティ（著者、言語、カテゴリー、画像）の解決、フィード行の挿入、
	// カテゴリーリンク、全エピソードの挿入をアトミックに行い、
	// 新しいフィードIDを返す。フィード挿入時の一意制約違反は
	// 型付きのDuplicateエラー（model.IngestError）として返す。
	SaveFeed(ctx context.Context, doc *model.FeedDocument, submitterID int64, img *model.CachedImage) (int64, error)

	// FindDuplicate はタイトルまたは正規URLが既存フィードと一致するかを
	// 確認し、一致したフィールドを返す。一致がない場合は空文字列を返す。
	// 両方が一致する場合はURLを優先する。取り込み前の早期重複チェックに使用する。
	FindDuplicate(ctx context.Context, title, url string) (model.DuplicateField, error)
}

// FeedRepository はフィードデータの読み取りインターフェース。
type FeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Feed, error)
}

// EpisodeRepository はエピソードデータの読み取りインターフェース。
type EpisodeRepository interface {
	// ListByFeed は指定フィードのエピソードをIDの昇順で取得する。
	// afterIDより大きいIDのエピソードを最大limit件返す。
	ListByFeed(ctx context.Context, feedID, afterID int64, limit int) ([]model.Episode, error)

	// MaxIDByFeed は指定フィードに保存済みのエピソードIDの最大値を返す。
	// エピソードが存在しない場合は0を返す。
	MaxIDByFeed(ctx context.Context, feedID int64) (int64, error)
}

// SessionRepository はセッションデータの読み取りインターフェース。
// セッションの発行・削除は対象外の認証サブシステムが所有する。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。
	// 期限切れまたは未登録の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
// *sql.DBが実装する。PostgresIngestRepoのSaveFeedはこのインターフェース
// 経由でトランザクションを開始するため、テストで差し替えられる。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
