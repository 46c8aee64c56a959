// Package fetch downloads remote sources to local disk, with optional
// content-addressed caching keyed by source URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/clipforge-render/internal/logging"
)

// FetchError wraps any failure to materialize a source locally.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", logging.SanitizeURL(e.URL), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher materializes a source URL as a local file path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher downloads over HTTP(S). With a cache attached, downloads
// land in the cache and repeat fetches of the same URL are free; without
// one they land in the scratch directory.
type HTTPFetcher struct {
	client  *http.Client
	cache   *Cache
	scratch string
	logger  *slog.Logger
}

func NewHTTPFetcher(timeout time.Duration, cache *Cache, scratchDir string, logger *slog.Logger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		cache:   cache,
		scratch: scratchDir,
		logger:  logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	// Absolute paths and file URLs pass through untouched; they are
	// already local.
	if local, ok := localPath(rawURL); ok {
		if _, err := os.Stat(local); err != nil {
			return "", &FetchError{URL: rawURL, Err: err}
		}
		return local, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	if f.cache != nil {
		if p, ok := f.cache.Lookup(rawURL); ok {
			if f.logger != nil {
				f.logger.Debug("source cache hit", "url", logging.SanitizeURL(rawURL), "path", p)
			}
			return p, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	staged, err := f.stagingFile()
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	stagedPath := staged.Name()
	written, err := io.Copy(staged, resp.Body)
	closeErr := staged.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(stagedPath)
		return "", &FetchError{URL: rawURL, Err: err}
	}
	if written == 0 {
		os.Remove(stagedPath)
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("zero-byte response")}
	}

	ext := extensionFor(u, resp.Header.Get("Content-Type"))
	final, err := f.commit(rawURL, ext, stagedPath)
	if err != nil {
		os.Remove(stagedPath)
		return "", &FetchError{URL: rawURL, Err: err}
	}

	if f.logger != nil {
		f.logger.Info("fetched source",
			"url", logging.SanitizeURL(rawURL),
			"bytes", written,
			"elapsed", time.Since(start).Round(time.Millisecond).String(),
		)
	}
	return final, nil
}

func (f *HTTPFetcher) stagingFile() (*os.File, error) {
	if f.cache != nil {
		return f.cache.TempFile()
	}
	if err := os.MkdirAll(f.scratch, 0o755); err != nil {
		return nil, err
	}
	return os.CreateTemp(f.scratch, "fetch-*.part")
}

func (f *HTTPFetcher) commit(rawURL, ext, stagedPath string) (string, error) {
	if f.cache != nil {
		return f.cache.Store(rawURL, ext, stagedPath)
	}
	final := filepath.Join(f.scratch, hashURL(rawURL)+ext)
	if err := os.Rename(stagedPath, final); err != nil {
		return "", err
	}
	return final, nil
}

func localPath(rawURL string) (string, bool) {
	if strings.HasPrefix(rawURL, "file://") {
		return strings.TrimPrefix(rawURL, "file://"), true
	}
	if filepath.IsAbs(rawURL) {
		return rawURL, true
	}
	return "", false
}

// extensionFor picks a filename extension from the URL path, falling
// back to the response content type. ffmpeg relies on extensions for
// output-ish probing, so keeping a sensible one matters.
func extensionFor(u *url.URL, contentType string) string {
	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			if ext, ok := typeExtensions[mt]; ok {
				return ext
			}
		}
	}
	return ".bin"
}

var typeExtensions = map[string]string{
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"audio/aac":       ".aac",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"audio/ogg":       ".ogg",
}
