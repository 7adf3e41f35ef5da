// Package model はドメインモデルを定義する。
package model

import "time"

// Enclosure はエピソードのメディアファイル情報を表す。
// RSSのenclosure要素に対応し、エピソードの必須フィールドである。
type Enclosure struct {
	MediaURL    string
	MediaLength int64
	MimeType    string
}

// EpisodeCandidate はドキュメントパーサーが生成した未保存のエピソードを表す。
// タイトルとエンクロージャーが揃ったもののみが候補リストに残る。
type EpisodeCandidate struct {
	Title       string
	Description string // iTunes summary優先、先頭52トークンに切り詰め済み
	ShowNotes   string // サニタイズ済みHTML
	Published   *time.Time
	Keywords    []string
	Duration    *int64 // 秒数
	Explicit    bool
	LinkWeb     string
	Enclosure   Enclosure
	GUID        string
}

// DroppedEpisode は必須フィールド欠落により候補リストから除外された
// エピソードの記録を表す。除外はドキュメント全体の失敗とはならない。
type DroppedEpisode struct {
	Title  string
	Reason string
}

// Episode は永続化済みのエピソードを表す。
// 親フィードと同一トランザクションで作成され、孤児になることはない。
type Episode struct {
	ID          int64
	FeedID      int64
	Title       string
	Description string
	ShowNotes   string
	Published   *time.Time
	Keywords    []string
	Duration    *int64
	Explicit    bool
	LinkWeb     string
	Enclosure   Enclosure
	GUID        string
}
