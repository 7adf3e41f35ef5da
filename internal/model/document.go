// Package model はドメインモデルを定義する。
package model

// FeedDocument はシンジケーションドキュメントをパースした中間表現を表す。
// 1回の取り込み呼び出しごとに生成され、構築後は変更されない。
// リクエスト間で共有されることはない。
type FeedDocument struct {
	Title        string
	Description  string
	Subtitle     string
	Author       string
	LanguageCode string // 正規化済みISO 639コード。不明な場合は空文字列
	ImageURL     string
	URL          string // 正規フィードURL
	LinkWeb      string // フィードURL自身と同一の場合は空文字列
	Categories   *CategoryTree
	Episodes     []EpisodeCandidate
	Dropped      []DroppedEpisode
}

// CategoryTree は親カテゴリー名から子カテゴリー名集合への
// 順序付きマッピングを表す。親は挿入順を保持し、
// 同一親配下の子は重複しない。
type CategoryTree struct {
	order    []string
	children map[string][]string
}

// NewCategoryTree は空のCategoryTreeを生成する。
func NewCategoryTree() *CategoryTree {
	return &CategoryTree{
		children: make(map[string][]string),
	}
}

// AddParent は親カテゴリーを追加する。既存の場合は何もしない。
func (t *CategoryTree) AddParent(name string) {
	if _, ok := t.children[name]; ok {
		return
	}
	t.order = append(t.order, name)
	t.children[name] = nil
}

// AddChild は親カテゴリー配下に子カテゴリーを追加する。
// 親が未登録の場合は親も追加する。同一親配下の重複する子は無視される。
func (t *CategoryTree) AddChild(parent, child string) {
	t.AddParent(parent)
	for _, existing := range t.children[parent] {
		if existing == child {
			return
		}
	}
	t.children[parent] = append(t.children[parent], child)
}

// Parents は親カテゴリー名を挿入順で返す。
func (t *CategoryTree) Parents() []string {
	return t.order
}

// Children は指定親カテゴリー配下の子カテゴリー名を追加順で返す。
func (t *CategoryTree) Children(parent string) []string {
	return t.children[parent]
}

// Len は親カテゴリーの数を返す。
func (t *CategoryTree) Len() int {
	return len(t.order)
}
