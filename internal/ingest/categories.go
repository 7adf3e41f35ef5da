package ingest

import (
	"strings"

	"github.com/hitoshi/podcatch/internal/model"
)

// ItunesCategory はitunes:category要素から取得した
// 親カテゴリー名とサブカテゴリー名の組を表す。
type ItunesCategory struct {
	Text        string
	Subcategory string
}

// BuildCategoryTree はドキュメントのカテゴリーヒントから
// 2階層の親→子カテゴリーマッピングを導出する。
// 通常カテゴリーは子を持たないトップレベルエントリーとなる。
// iTunesカテゴリーは親エントリーを作り、サブカテゴリーが存在すれば
// その親の子集合に追加する。同一親配下の重複する子は無視される。
// 空または空白のみの名前は階層を問わず除外される。
func BuildCategoryTree(channelCategories []string, itunesCategories []ItunesCategory) *model.CategoryTree {
	tree := model.NewCategoryTree()

	for _, name := range channelCategories {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tree.AddParent(name)
	}

	for _, cat := range itunesCategories {
		parent := strings.TrimSpace(cat.Text)
		if parent == "" {
			continue
		}
		child := strings.TrimSpace(cat.Subcategory)
		if child == "" {
			tree.AddParent(parent)
			continue
		}
		tree.AddChild(parent, child)
	}

	return tree
}
