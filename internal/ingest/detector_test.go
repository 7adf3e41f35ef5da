package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/podcatch/internal/model"
)

// mockSSRFGuard はテスト用のSSRFGuardモック。
type mockSSRFGuard struct {
	blockAll bool
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.blockAll {
		return fmt.Errorf("blocked by SSRF guard")
	}
	return nil
}

// --- IsDirectFeed のテスト ---

// TestIsDirectFeed_RSSContentType はContent-Typeがapplication/rss+xmlの場合にtrueを返すことをテストする。
func TestIsDirectFeed_RSSContentType(t *testing.T) {
	d := NewFeedDetector(nil)
	if !d.IsDirectFeed("application/rss+xml", nil) {
		t.Error("application/rss+xml はフィードと判定されるべき")
	}
}

// TestIsDirectFeed_AtomContentType はContent-Typeがapplication/atom+xmlの場合にtrueを返すことをテストする。
func TestIsDirectFeed_AtomContentType(t *testing.T) {
	d := NewFeedDetector(nil)
	if !d.IsDirectFeed("application/atom+xml", nil) {
		t.Error("application/atom+xml はフィードと判定されるべき")
	}
}

// TestIsDirectFeed_XMLContentTypeWithRSSBody はContent-Typeがtext/xmlでボディがRSSの場合にtrueを返すことをテストする。
func TestIsDirectFeed_XMLContentTypeWithRSSBody(t *testing.T) {
	d := NewFeedDetector(nil)
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test</title></channel></rss>`)
	if !d.IsDirectFeed("text/xml", body) {
		t.Error("text/xml + RSSボディ はフィードと判定されるべき")
	}
}

// TestIsDirectFeed_XMLContentTypeWithAtomBody はContent-Typeがtext/xmlでボディがAtomの場合にtrueを返すことをテストする。
func TestIsDirectFeed_XMLContentTypeWithAtomBody(t *testing.T) {
	d := NewFeedDetector(nil)
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom"><title>Test</title></feed>`)
	if !d.IsDirectFeed("text/xml", body) {
		t.Error("text/xml + Atomボディ はフィードと判定されるべき")
	}
}

// TestIsDirectFeed_HTMLContentType はContent-Typeがtext/htmlの場合にfalseを返すことをテストする。
func TestIsDirectFeed_HTMLContentType(t *testing.T) {
	d := NewFeedDetector(nil)
	if d.IsDirectFeed("text/html", nil) {
		t.Error("text/html はフィードと判定されるべきではない")
	}
}

// TestIsDirectFeed_ContentTypeWithCharset はContent-Typeにcharsetパラメータが含まれる場合も正しく判定することをテストする。
func TestIsDirectFeed_ContentTypeWithCharset(t *testing.T) {
	d := NewFeedDetector(nil)
	if !d.IsDirectFeed("application/rss+xml; charset=utf-8", nil) {
		t.Error("application/rss+xml; charset=utf-8 はフィードと判定されるべき")
	}
}

// TestIsDirectFeed_XMLContentTypeWithHTMLBody はContent-Typeがtext/xmlだがHTMLボディの場合にfalseを返すことをテストする。
func TestIsDirectFeed_XMLContentTypeWithHTMLBody(t *testing.T) {
	d := NewFeedDetector(nil)
	body := []byte(`<?xml version="1.0"?><html><head><title>Test</title></head></html>`)
	if d.IsDirectFeed("text/xml", body) {
		t.Error("text/xml + HTMLボディ はフィードと判定されるべきではない")
	}
}

// --- ParseFeedLinksFromHTML のテスト ---

func TestParseFeedLinksFromHTML_SingleRSSLink(t *testing.T) {
	d := NewFeedDetector(nil)
	html := `<html><head>
		<link rel="alternate" type="application/rss+xml" title="Podcast Feed" href="https://example.com/feed.xml">
	</head><body></body></html>`

	links := d.ParseFeedLinksFromHTML([]byte(html), "https://example.com/")
	if len(links) != 1 {
		t.Fatalf("len(links) = %d, want 1", len(links))
	}
	if links[0].URL != "https://example.com/feed.xml" {
		t.Errorf("URL = %q", links[0].URL)
	}
	if links[0].FeedType != FeedTypeRSS {
		t.Errorf("FeedType = %q, want rss", links[0].FeedType)
	}
	if links[0].Title != "Podcast Feed" {
		t.Errorf("Title = %q", links[0].Title)
	}
}

func TestParseFeedLinksFromHTML_RelativeURL(t *testing.T) {
	d := NewFeedDetector(nil)
	html := `<html><head>
		<link rel="alternate" type="application/rss+xml" href="/podcast/feed.xml">
	</head><body></body></html>`

	links := d.ParseFeedLinksFromHTML([]byte(html), "https://example.com/show")
	if len(links) != 1 {
		t.Fatalf("len(links) = %d, want 1", len(links))
	}
	if links[0].URL != "https://example.com/podcast/feed.xml" {
		t.Errorf("相対URLが解決されていない: %q", links[0].URL)
	}
}

func TestParseFeedLinksFromHTML_IgnoreNonAlternate(t *testing.T) {
	d := NewFeedDetector(nil)
	html := `<html><head>
		<link rel="stylesheet" type="text/css" href="/style.css">
		<link rel="alternate" type="text/html" href="/mobile">
		<link rel="alternate" type="application/atom+xml" href="/atom.xml">
	</head><body></body></html>`

	links := d.ParseFeedLinksFromHTML([]byte(html), "https://example.com/")
	if len(links) != 1 {
		t.Fatalf("len(links) = %d, want 1", len(links))
	}
	if links[0].FeedType != FeedTypeAtom {
		t.Errorf("FeedType = %q, want atom", links[0].FeedType)
	}
}

// TestParseFeedLinksFromHTML_BodyLinksIgnored はbody内のlinkタグが無視されることをテストする。
func TestParseFeedLinksFromHTML_BodyLinksIgnored(t *testing.T) {
	d := NewFeedDetector(nil)
	html := `<html><head></head><body>
		<link rel="alternate" type="application/rss+xml" href="/feed.xml">
	</body></html>`

	links := d.ParseFeedLinksFromHTML([]byte(html), "https://example.com/")
	if len(links) != 0 {
		t.Errorf("body内のlinkタグは無視されるべき: %v", links)
	}
}

func TestParseFeedLinksFromHTML_NoLinks(t *testing.T) {
	d := NewFeedDetector(nil)
	html := `<html><head><title>No Feed</title></head><body></body></html>`

	links := d.ParseFeedLinksFromHTML([]byte(html), "https://example.com/")
	if len(links) != 0 {
		t.Errorf("len(links) = %d, want 0", len(links))
	}
}

// --- SelectBestFeed のテスト ---

func TestSelectBestFeed_SameHostPreferred(t *testing.T) {
	d := NewFeedDetector(nil)
	links := []FeedLink{
		{URL: "https://feedproxy.example.net/feed.xml", FeedType: FeedTypeRSS},
		{URL: "https://example.com/feed.xml", FeedType: FeedTypeRSS},
	}

	best := d.SelectBestFeed(links, "https://example.com/")
	if best == nil || best.URL != "https://example.com/feed.xml" {
		t.Errorf("同一ホストのフィードが優先されるべき: %+v", best)
	}
}

// TestSelectBestFeed_RSSPreferredOverAtom はポッドキャストの標準であるRSSが
// Atomより優先されることをテストする。
func TestSelectBestFeed_RSSPreferredOverAtom(t *testing.T) {
	d := NewFeedDetector(nil)
	links := []FeedLink{
		{URL: "https://example.com/atom.xml", FeedType: FeedTypeAtom},
		{URL: "https://example.com/feed.xml", FeedType: FeedTypeRSS},
	}

	best := d.SelectBestFeed(links, "https://example.com/")
	if best == nil || best.FeedType != FeedTypeRSS {
		t.Errorf("RSSフィードが優先されるべき: %+v", best)
	}
}

func TestSelectBestFeed_FirstWhenSameCondition(t *testing.T) {
	d := NewFeedDetector(nil)
	links := []FeedLink{
		{URL: "https://example.com/feed1.xml", FeedType: FeedTypeRSS},
		{URL: "https://example.com/feed2.xml", FeedType: FeedTypeRSS},
	}

	best := d.SelectBestFeed(links, "https://example.com/")
	if best == nil || best.URL != "https://example.com/feed1.xml" {
		t.Errorf("同条件の場合は先頭のフィードが選択されるべき: %+v", best)
	}
}

func TestSelectBestFeed_EmptyCandidates(t *testing.T) {
	d := NewFeedDetector(nil)
	if best := d.SelectBestFeed(nil, "https://example.com/"); best != nil {
		t.Errorf("候補が空の場合はnilを返すべき: %+v", best)
	}
}

// --- Resolve のテスト ---

func TestResolve_DirectRSSFeed(t *testing.T) {
	rssXML := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test</description>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssXML)
	}))
	defer server.Close()

	d := NewFeedDetector(&mockSSRFGuard{})

	feedURL, body, err := d.Resolve(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if feedURL != server.URL+"/feed.xml" {
		t.Errorf("期待URL: %s/feed.xml, 結果: %s", server.URL, feedURL)
	}
	// 直接フィードは取得済みボディがそのまま返される
	if !strings.Contains(string(body), "<rss") {
		t.Errorf("ボディがRSSではない: %s", body)
	}
}

func TestResolve_HTMLWithFeedLink(t *testing.T) {
	var serverURL string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><head>
				<link rel="alternate" type="application/rss+xml" href="%s/feed.xml">
			</head><body></body></html>`, serverURL)
		case "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title></channel></rss>`)
		}
	}))
	defer server.Close()
	serverURL = server.URL

	d := NewFeedDetector(&mockSSRFGuard{})

	feedURL, body, err := d.Resolve(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if feedURL != server.URL+"/feed.xml" {
		t.Errorf("期待URL: %s/feed.xml, 結果: %s", server.URL, feedURL)
	}
	if !strings.Contains(string(body), "<rss") {
		t.Errorf("選択されたフィードのボディが返されるべき: %s", body)
	}
}

func TestResolve_HTMLWithRelativeFeedLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/blog":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head>
				<link rel="alternate" type="application/rss+xml" href="/feed.xml">
			</head><body></body></html>`)
		case "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title></channel></rss>`)
		}
	}))
	defer server.Close()

	d := NewFeedDetector(&mockSSRFGuard{})

	feedURL, _, err := d.Resolve(context.Background(), server.URL+"/blog")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if feedURL != server.URL+"/feed.xml" {
		t.Errorf("期待URL: %s/feed.xml, 結果: %s", server.URL, feedURL)
	}
}

func TestResolve_HTMLNoFeedLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>No Feed</title></head><body></body></html>`)
	}))
	defer server.Close()

	d := NewFeedDetector(&mockSSRFGuard{})

	_, _, err := d.Resolve(context.Background(), server.URL+"/")
	if err == nil {
		t.Fatal("フィード未検出時はエラーを返すべき")
	}

	var ingestErr *model.IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("IngestError型が期待されるが、%T が返された", err)
	}
	if ingestErr.Code != model.ErrCodeFeedNotDetected {
		t.Errorf("期待エラーコード: %s, 結果: %s", model.ErrCodeFeedNotDetected, ingestErr.Code)
	}
	if ingestErr.Action == "" {
		t.Error("対処方法が空であるべきではない")
	}
}

func TestResolve_SSRFBlocked(t *testing.T) {
	d := NewFeedDetector(&mockSSRFGuard{blockAll: true})

	_, _, err := d.Resolve(context.Background(), "http://192.168.1.1/feed.xml")
	if err == nil {
		t.Fatal("SSRF検証でブロックされるURLはエラーを返すべき")
	}

	var ingestErr *model.IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("IngestError型が期待されるが、%T が返された", err)
	}
	if ingestErr.Code != model.ErrCodeSSRFBlocked {
		t.Errorf("期待エラーコード: %s, 結果: %s", model.ErrCodeSSRFBlocked, ingestErr.Code)
	}
}

func TestResolve_EmptyURL(t *testing.T) {
	d := NewFeedDetector(&mockSSRFGuard{})

	_, _, err := d.Resolve(context.Background(), "")
	if err == nil {
		t.Fatal("空URLはエラーを返すべき")
	}

	var ingestErr *model.IngestError
	if !errors.As(err, &ingestErr) || ingestErr.Code != model.ErrCodeInvalidURL {
		t.Errorf("INVALID_URLエラーであるべき: %v", err)
	}
}

func TestResolve_FetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewFeedDetector(&mockSSRFGuard{})

	_, _, err := d.Resolve(context.Background(), server.URL+"/feed.xml")
	if err == nil {
		t.Fatal("5xxレスポンスはエラーを返すべき")
	}

	var ingestErr *model.IngestError
	if !errors.As(err, &ingestErr) || ingestErr.Code != model.ErrCodeFetchFailed {
		t.Errorf("FETCH_FAILEDエラーであるべき: %v", err)
	}
}

func TestResolve_XMLContentTypeWithRSSBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title></channel></rss>`)
	}))
	defer server.Close()

	d := NewFeedDetector(&mockSSRFGuard{})

	feedURL, _, err := d.Resolve(context.Background(), server.URL+"/feed")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if feedURL != server.URL+"/feed" {
		t.Errorf("text/xml + RSSボディは直接フィードとして扱われるべき: %s", feedURL)
	}
}

// TestResolve_NonFeedNonHTML はフィードでもHTMLでもないレスポンスがエラーになるテスト。
func TestResolve_NonFeedNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"not": "a feed"}`)
	}))
	defer server.Close()

	d := NewFeedDetector(&mockSSRFGuard{})

	_, _, err := d.Resolve(context.Background(), server.URL+"/api")
	if err == nil {
		t.Fatal("フィードでもHTMLでもないレスポンスはエラーを返すべき")
	}

	var ingestErr *model.IngestError
	if !errors.As(err, &ingestErr) || ingestErr.Code != model.ErrCodeFeedNotDetected {
		t.Errorf("FEED_NOT_DETECTEDエラーであるべき: %v", err)
	}
}
