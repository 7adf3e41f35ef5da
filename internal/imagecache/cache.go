// Package imagecache はフィードのカバー画像をローカルにキャッシュする機能を提供する。
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/podcatch/internal/model"
)

// maxImageSize はカバー画像の最大サイズ（5MB）。
const maxImageSize = 5 * 1024 * 1024

// imageTimeout は画像取得のタイムアウト。
const imageTimeout = 10 * time.Second

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// ImageCacheService はカバー画像キャッシュのインターフェース。
type ImageCacheService interface {
	// Cache は指定URLから画像を取得し、ハッシュ名でディレクトリに保存する。
	// JPEGとPNG以外の画像は拒否する。
	Cache(ctx context.Context, imageURL string) (*model.CachedImage, error)
}

// ImageCache はカバー画像キャッシュ機能の実装。
// ファイル名はコンテンツのSHA-256ハッシュから導出されるため、
// 同一画像の再取得は同じファイルに落ち、重複保存にならない。
type ImageCache struct {
	dir       string
	ssrfGuard SSRFValidator
}

// NewImageCache はImageCacheの新しいインスタンスを生成する。
// dirはキャッシュ先ディレクトリで、存在しない場合は作成される。
func NewImageCache(dir string, ssrfGuard SSRFValidator) (*ImageCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image cache dir: %w", err)
	}
	return &ImageCache{
		dir:       dir,
		ssrfGuard: ssrfGuard,
	}, nil
}

// Cache は指定URLから画像を取得し、ハッシュ名でディレクトリに保存する。
func (c *ImageCache) Cache(ctx context.Context, imageURL string) (*model.CachedImage, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("empty image URL")
	}

	if c.ssrfGuard != nil {
		if err := c.ssrfGuard.ValidateURL(imageURL); err != nil {
			return nil, fmt.Errorf("image URL blocked: %w", err)
		}
	}

	body, err := c.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	// コンテンツスニッフィングで実際の画像形式を判定する。
	// Content-Typeヘッダーは偽装できるため信用しない。
	ext, err := sniffImageExt(body)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	filename := hash + "." + ext

	path := filepath.Join(c.dir, filename)
	if _, err := os.Stat(path); err == nil {
		// 同一コンテンツが既にキャッシュ済み
		return &model.CachedImage{Hash: hash, Filename: filename, SourceLink: imageURL}, nil
	}

	// 一時ファイルに書いてからrenameすることで、並行する取り込みが
	// 書き込み途中のファイルを読むことを防ぐ。
	tmpPath := filepath.Join(c.dir, uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, body, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write cached image: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to finalize cached image: %w", err)
	}

	return &model.CachedImage{Hash: hash, Filename: filename, SourceLink: imageURL}, nil
}

// download は画像をHTTPで取得する。
func (c *ImageCache) download(ctx context.Context, imageURL string) ([]byte, error) {
	client := c.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("User-Agent", "Podcatch/1.0 Podcast Directory")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status fetching image: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(body)) > maxImageSize {
		return nil, fmt.Errorf("image exceeds size limit: %d bytes", len(body))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty image body")
	}

	return body, nil
}

// getHTTPClient はHTTPクライアントを取得する。
func (c *ImageCache) getHTTPClient() *http.Client {
	if c.ssrfGuard != nil {
		return c.ssrfGuard.NewSafeClient(imageTimeout, maxImageSize)
	}
	return &http.Client{Timeout: imageTimeout}
}

// sniffImageExt はコンテンツからファイル拡張子を判定する。
// JPEGとPNGのみを許可する。
func sniffImageExt(body []byte) (string, error) {
	switch http.DetectContentType(body) {
	case "image/jpeg":
		return "jpeg", nil
	case "image/png":
		return "png", nil
	default:
		return "", fmt.Errorf("unsupported image format")
	}
}

// compile-time interface check
var _ ImageCacheService = (*ImageCache)(nil)
