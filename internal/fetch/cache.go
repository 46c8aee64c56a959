package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Cache stores downloaded sources content-addressed by URL hash. Entries
// are sharded by the first hash byte to keep directories small. The same
// URL always maps to the same path, so a repeat fetch is a stat call.
type Cache struct {
	root   string
	logger *slog.Logger
}

func NewCache(root string, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{root: root, logger: logger}, nil
}

func (c *Cache) Root() string { return c.root }

func hashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) entryPath(rawURL, ext string) string {
	h := hashURL(rawURL)
	return filepath.Join(c.root, h[:2], h+ext)
}

// Lookup returns the cached path for a URL if present. The stored
// extension may differ from the URL's, so the probe is a glob over the
// hash prefix. Hits get their mtime refreshed so retention sweeps keep
// working entries alive.
func (c *Cache) Lookup(rawURL string) (string, bool) {
	h := hashURL(rawURL)
	matches, err := filepath.Glob(filepath.Join(c.root, h[:2], h+".*"))
	if err != nil || len(matches) == 0 {
		// Entries without an extension land exactly on the hash.
		bare := filepath.Join(c.root, h[:2], h)
		if fi, statErr := os.Stat(bare); statErr == nil && fi.Size() > 0 {
			now := time.Now()
			_ = os.Chtimes(bare, now, now)
			return bare, true
		}
		return "", false
	}
	fi, err := os.Stat(matches[0])
	if err != nil || fi.Size() == 0 {
		return "", false
	}
	now := time.Now()
	_ = os.Chtimes(matches[0], now, now)
	return matches[0], true
}

// TempFile creates a staging file on the cache filesystem so Store can
// finish with an atomic rename.
func (c *Cache) TempFile() (*os.File, error) {
	return os.CreateTemp(filepath.Join(c.root, "tmp"), "fetch-*.part")
}

// Store moves a staged download into its content-addressed slot.
func (c *Cache) Store(rawURL, ext, stagedPath string) (string, error) {
	final := c.entryPath(rawURL, ext)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", fmt.Errorf("create cache shard: %w", err)
	}
	if err := os.Rename(stagedPath, final); err != nil {
		return "", fmt.Errorf("commit cache entry: %w", err)
	}
	return final, nil
}

// Sweep removes entries older than maxAge and returns how many were
// deleted. The tmp staging dir is swept on the same schedule.
func (c *Cache) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.Walk(c.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			if c.logger != nil {
				c.logger.Warn("cache sweep failed to remove entry", "path", path, "error", err)
			}
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep cache: %w", err)
	}
	if removed > 0 && c.logger != nil {
		c.logger.Info("swept source cache", "removed", removed, "maxAge", maxAge.String())
	}
	return removed, nil
}
