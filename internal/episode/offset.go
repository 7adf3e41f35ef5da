// Package episode はエピソードの読み取りとページング計算を提供する。
package episode

import "github.com/hitoshi/podcatch/internal/model"

// PageSize はエピソード一覧の1ページあたりの件数。
const PageSize = 50

// NextOffset は次ページ取得用のカーソルを計算する。
//
// 取得したページが1ページ分（PageSize件）に満たない場合は末尾に達して
// いるためカーソルは不要でnilを返す。満たしている場合でも、ページ内の
// 最大IDがフィード全体の最大ID以上であれば続きは存在しないのでnilを返す。
// それ以外の場合はページ内の最大IDをカーソルとして返し、呼び出し元は
// これを次回のoffsetに渡すことで続きから取得できる。
func NextOffset(page []model.Episode, feedMaxID int64) *int64 {
	if len(page) < PageSize {
		return nil
	}

	var pageMax int64
	for _, ep := range page {
		if ep.ID > pageMax {
			pageMax = ep.ID
		}
	}

	if pageMax >= feedMaxID {
		return nil
	}
	return &pageMax
}
