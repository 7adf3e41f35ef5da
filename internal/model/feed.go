// Package model はドメインモデルを定義する。
package model

import "time"

// FeedStatus はフィードのモデレーション状態を表す。
// 取り込みパイプラインは初期状態のQueuedを設定するのみで、
// 状態遷移はモデレーションサブシステムが所有する。
type FeedStatus string

const (
	// FeedStatusQueued はモデレーション待ちの初期状態。
	FeedStatusQueued FeedStatus = "queued"
	// FeedStatusOnline は公開承認済みの状態。
	FeedStatusOnline FeedStatus = "online"
	// FeedStatusOffline は非公開の状態。
	FeedStatusOffline FeedStatus = "offline"
	// FeedStatusBlocked はブロック済みの状態。
	FeedStatusBlocked FeedStatus = "blocked"
)

// Feed は永続化済みのポッドキャストフィードを表す。
// AuthorID、ImageID、LanguageIDは参照エンティティへの外部キーで、
// 元ドキュメントに対応する値がない場合はnilとなる。
type Feed struct {
	ID           int64
	SubmitterID  int64
	AuthorID     *int64
	Title        string
	ImageID      *int64
	Description  string
	Subtitle     string
	URL          string
	LanguageID   *int64
	LinkWeb      string
	Status       FeedStatus
	Submitted    time.Time
	LastModified time.Time
}

// CachedImage はトランザクション開始前にダウンロード済みの
// キャッシュ画像ディスクリプタを表す。
// 画像取得はDBトランザクションから完全に分離されており、
// 取り込みパイプラインには本構造体の値のみが渡される。
type CachedImage struct {
	Hash       string
	Filename   string
	SourceLink string
}
