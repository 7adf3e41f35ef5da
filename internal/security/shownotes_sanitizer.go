// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ShowNotesSanitizerService はエピソードのショーノートHTMLをサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 表示用として安全なタグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ShowNotesSanitizerService はショーノートHTMLのサニタイズ機能のインターフェースを定義する。
// エピソード保存前のドキュメントパース時に使用される。
type ShowNotesSanitizerService interface {
	// Sanitize はショーノートHTMLをサニタイズして安全なHTMLを返す。
	// 表示に不要または危険な構造タグ（img, hr, figure, figcaption,
	// mark, ruby, iframe）を除去し、リンクのrel属性を取り除き、
	// 相対URLを不許可とする（完全修飾リンクのみ保持）。
	// パース不能な入力はエスケープ済みテキストに退化する。失敗しない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// showNotesSanitizer はShowNotesSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type showNotesSanitizer struct {
	policy *bluemonday.Policy
}

// NewShowNotesSanitizer はShowNotesSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: 段落・リスト・見出し・強調・引用・コードなどの表示用タグ
//   - 禁止タグ: img, hr, figure, figcaption, mark, ruby, iframe
//     （許可リストに含めないことで除去される。script, style等も同様）
//   - aタグ: href属性のみ許可。rel属性は付与しない
//   - 相対URLは不許可（絶対URLのリンクのみ保持）
func NewShowNotesSanitizer() *showNotesSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "div", "span",
		"ul", "ol", "li", "dl", "dt", "dd",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "u", "s",
		"sub", "sup", "small", "cite", "q",
		"abbr", "time",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	// aタグはhref属性のみ許可する。
	// bluemondayは許可されていない属性を除去するため、
	// ソース側のrel属性は通過しない。
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)

	return &showNotesSanitizer{
		policy: p,
	}
}

// Sanitize はショーノートHTMLをサニタイズして安全なHTMLを返す。
func (s *showNotesSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
