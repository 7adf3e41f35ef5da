package ingest

import (
	"bytes"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/language"

	"github.com/hitoshi/podcatch/internal/model"
	"github.com/hitoshi/podcatch/internal/security"
)

// defaultMimeType はエンクロージャーのMIMEタイプが取得できない場合の既定値。
const defaultMimeType = "audio/mpeg"

// descriptionTokenLimit はエピソード説明文の先頭トークン数の上限。
const descriptionTokenLimit = 52

// explicitTokens はexplicitフラグを真と判定するトークンの集合。
var explicitTokens = map[string]bool{
	"Yes":      true,
	"yes":      true,
	"true":     true,
	"True":     true,
	"explicit": true,
}

// DocumentParser は生のシンジケーションドキュメントを
// 中間表現FeedDocumentに変換する。
// 再生時間パーサーとサニタイザーを内部で使用する。
type DocumentParser struct {
	sanitizer security.ShowNotesSanitizerService
	logger    *slog.Logger
}

// NewDocumentParser はDocumentParserの新しいインスタンスを生成する。
func NewDocumentParser(sanitizer security.ShowNotesSanitizerService, logger *slog.Logger) *DocumentParser {
	return &DocumentParser{
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Parse は生のバイト列をFeedDocumentにパースする。
// シンジケーションXMLとして整形式でない場合のみ失敗する。
// 個々のフィールド導出は優雅に劣化する: itunes画像が無ければ
// チャンネル画像にフォールバックし、サブタイトルが無ければ空、
// 必須のタイトルやエンクロージャーを欠くエピソードはドキュメント全体を
// 失敗させずに除外される（Droppedに記録しログ出力する）。
func (p *DocumentParser) Parse(raw []byte, sourceURL string) (*model.FeedDocument, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		p.logger.Warn("フィードのパースに失敗しました",
			slog.String("source_url", sourceURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInvalidFeedError()
	}

	if strings.TrimSpace(parsed.Title) == "" {
		p.logger.Warn("フィードにタイトルがありません",
			slog.String("source_url", sourceURL),
		)
		return nil, model.NewInvalidFeedError()
	}

	doc := &model.FeedDocument{
		Title:        parsed.Title,
		Description:  parsed.Description,
		URL:          sourceURL,
		ImageURL:     parseImageURL(parsed),
		LanguageCode: normalizeLanguageCode(parsed.Language),
		LinkWeb:      deriveLinkWeb(parsed.Link, sourceURL),
		Categories:   BuildCategoryTree(channelCategories(parsed), itunesCategories(parsed)),
	}

	if it := parsed.ITunesExt; it != nil {
		doc.Author = it.Author
		doc.Subtitle = it.Subtitle
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		candidate, err := p.buildEpisode(item)
		if err != nil {
			doc.Dropped = append(doc.Dropped, model.DroppedEpisode{
				Title:  item.Title,
				Reason: err.Error(),
			})
			p.logger.Warn("エピソードを除外しました",
				slog.String("source_url", sourceURL),
				slog.String("episode_title", item.Title),
				slog.String("reason", err.Error()),
			)
			continue
		}
		doc.Episodes = append(doc.Episodes, *candidate)
	}

	// 公開日時の降順に並べる。日時のないエピソードは末尾に置く
	sort.SliceStable(doc.Episodes, func(i, j int) bool {
		a, b := doc.Episodes[i].Published, doc.Episodes[j].Published
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})

	return doc, nil
}

// episodeError はエピソード除外理由を表す。
type episodeError string

func (e episodeError) Error() string { return string(e) }

const (
	errMissingTitle     = episodeError("タイトルがありません")
	errMissingEnclosure = episodeError("エンクロージャーがありません")
	errBadEnclosureURL  = episodeError("エンクロージャーのURLが不正です")
)

// buildEpisode は1件のフィードアイテムからEpisodeCandidateを構築する。
// 必須フィールド（タイトル、エンクロージャー）を欠く場合はエラーを返し、
// 呼び出し元がそのエピソードを除外する。
func (p *DocumentParser) buildEpisode(item *gofeed.Item) (*model.EpisodeCandidate, error) {
	if strings.TrimSpace(item.Title) == "" {
		return nil, errMissingTitle
	}

	enclosure, err := parseEnclosure(item)
	if err != nil {
		return nil, err
	}

	candidate := &model.EpisodeCandidate{
		Title:       item.Title,
		Description: deriveDescription(item),
		ShowNotes:   p.sanitizer.Sanitize(deriveShowNotes(item)),
		Published:   item.PublishedParsed,
		Enclosure:   *enclosure,
		GUID:        item.GUID,
	}

	if link, err := url.Parse(item.Link); err == nil && link.IsAbs() {
		candidate.LinkWeb = item.Link
	}

	if it := item.ITunesExt; it != nil {
		candidate.Explicit = explicitTokens[it.Explicit]
		candidate.Keywords = splitKeywords(it.Keywords)
		if it.Duration != "" {
			if seconds, err := ParseDuration(it.Duration, DurationCarry); err == nil {
				candidate.Duration = &seconds
			}
		}
	}

	return candidate, nil
}

// parseEnclosure はアイテムのエンクロージャーをパースする。
// エンクロージャーはエピソードの必須フィールドで、欠落はそのエピソードの
// ハードなパース失敗となる。バイト長とMIMEタイプは欠落を許容する。
func parseEnclosure(item *gofeed.Item) (*model.Enclosure, error) {
	var raw *gofeed.Enclosure
	for _, e := range item.Enclosures {
		if e != nil && e.URL != "" {
			raw = e
			break
		}
	}
	if raw == nil {
		return nil, errMissingEnclosure
	}

	mediaURL, err := url.Parse(raw.URL)
	if err != nil || !mediaURL.IsAbs() {
		return nil, errBadEnclosureURL
	}

	length, err := strconv.ParseInt(raw.Length, 10, 64)
	if err != nil {
		length = 0
	}

	mimeType := raw.Type
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	return &model.Enclosure{
		MediaURL:    raw.URL,
		MediaLength: length,
		MimeType:    mimeType,
	}, nil
}

// deriveDescription はエピソードの短い説明文を導出する。
// iTunes summaryをdescriptionより優先し、
// 先頭52個の空白区切りトークンに切り詰める。
func deriveDescription(item *gofeed.Item) string {
	text := item.Description
	if it := item.ITunesExt; it != nil && it.Summary != "" {
		text = it.Summary
	}
	tokens := strings.Fields(text)
	if len(tokens) > descriptionTokenLimit {
		tokens = tokens[:descriptionTokenLimit]
	}
	return strings.Join(tokens, " ")
}

// deriveShowNotes はショーノート用のHTMLを導出する。
// contentとiTunes summaryの両方が存在する場合は長い方を採用し、
// 片方のみの場合はそれを、どちらも無い場合はdescriptionを使用する。
func deriveShowNotes(item *gofeed.Item) string {
	content := item.Content
	summary := ""
	if it := item.ITunesExt; it != nil {
		summary = it.Summary
	}

	switch {
	case content != "" && summary != "":
		if len(content) > len(summary) {
			return content
		}
		return summary
	case content != "":
		return content
	case summary != "":
		return summary
	default:
		return item.Description
	}
}

// parseImageURL はチャンネル画像のURLを導出する。
// チャンネル画像を優先し、無ければitunes:imageにフォールバックする。
// URLとしてパースできない値は無視される。
func parseImageURL(feed *gofeed.Feed) string {
	if feed.Image != nil && feed.Image.URL != "" {
		if u, err := url.Parse(feed.Image.URL); err == nil && u.IsAbs() {
			return feed.Image.URL
		}
	}
	if it := feed.ITunesExt; it != nil && it.Image != "" {
		if u, err := url.Parse(it.Image); err == nil && u.IsAbs() {
			return it.Image
		}
	}
	return ""
}

// channelCategories はチャンネル直下の<category>値のみを返す。
// gofeedのCategoriesはitunes:categoryの親・サブカテゴリーテキストも
// 統合した集約リストであるため、itunes側に現れる名前を除外しないと
// サブカテゴリーがトップレベルカテゴリーとして二重登録されてしまう。
func channelCategories(feed *gofeed.Feed) []string {
	itunesNames := make(map[string]struct{})
	if feed.ITunesExt != nil {
		for _, c := range feed.ITunesExt.Categories {
			if c == nil {
				continue
			}
			itunesNames[strings.TrimSpace(c.Text)] = struct{}{}
			if c.Subcategory != nil {
				itunesNames[strings.TrimSpace(c.Subcategory.Text)] = struct{}{}
			}
		}
	}
	cats := make([]string, 0, len(feed.Categories))
	for _, name := range feed.Categories {
		if _, ok := itunesNames[strings.TrimSpace(name)]; ok {
			continue
		}
		cats = append(cats, name)
	}
	return cats
}

// itunesCategories はitunes:category要素をItunesCategoryのリストに変換する。
// gofeedのサブカテゴリーは1階層のみ考慮する。
func itunesCategories(feed *gofeed.Feed) []ItunesCategory {
	if feed.ITunesExt == nil {
		return nil
	}
	cats := make([]ItunesCategory, 0, len(feed.ITunesExt.Categories))
	for _, c := range feed.ITunesExt.Categories {
		if c == nil {
			continue
		}
		cat := ItunesCategory{Text: c.Text}
		if c.Subcategory != nil {
			cat.Subcategory = c.Subcategory.Text
		}
		cats = append(cats, cat)
	}
	return cats
}

// deriveLinkWeb はウェブサイトリンクを導出する。
// scheme+host+path+queryが正規フィードURLと等価な場合はリンクを抑制する
// （フィード自身を指すホームページリンクを冗長に保存しない）。
func deriveLinkWeb(link, sourceURL string) string {
	if link == "" {
		return ""
	}
	linkURL, err := url.Parse(link)
	if err != nil || !linkURL.IsAbs() {
		return ""
	}
	feedURL, err := url.Parse(sourceURL)
	if err != nil {
		return link
	}
	if linkURL.Scheme == feedURL.Scheme &&
		linkURL.Host == feedURL.Host &&
		linkURL.Path == feedURL.Path &&
		linkURL.RawQuery == feedURL.RawQuery {
		return ""
	}
	return link
}

// normalizeLanguageCode はフィードの言語コードをISO 639ベースコードに正規化する。
// パースできないコードは空文字列（言語未設定）として扱う。
func normalizeLanguageCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	// language.Parseは未知のコードもベストエフォートで受理するため、
	// ベースコードが既知のISO 639コードに解決できることまで確認する
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	if _, err := language.ParseBase(base.String()); err != nil {
		return ""
	}
	return base.String()
}

// splitKeywords はカンマ区切りのキーワード文字列をリストに分割する。
// 前後の空白は取り除き、空の要素は除外される。
func splitKeywords(keywords string) []string {
	if keywords == "" {
		return nil
	}
	parts := strings.Split(keywords, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
