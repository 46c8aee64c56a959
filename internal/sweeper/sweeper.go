// Package sweeper reclaims disk space on a schedule: expired cache
// entries, orphaned scratch directories, and artifacts past their
// retention window.
package sweeper

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/clipforge/clipforge-render/internal/fetch"
	"github.com/clipforge/clipforge-render/internal/logging"
)

const defaultInterval = 30 * time.Minute

// Config wires a Sweeper. Zero-value directories or a nil cache simply
// skip that concern.
type Config struct {
	Cache             *fetch.Cache
	ScratchDir        string
	ArtifactsDir      string
	CacheRetention    time.Duration
	ArtifactRetention time.Duration
	Interval          time.Duration
	Logger            *slog.Logger
}

type Sweeper struct {
	cfg     Config
	logger  *slog.Logger
	running atomic.Bool
}

func New(cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sweeper{cfg: cfg, logger: logging.WithComponent(cfg.Logger, "sweeper")}
}

// Start runs the sweep loop until the context is cancelled. An initial
// sweep happens immediately so leftovers from a previous run are
// reclaimed at startup.
func (s *Sweeper) Start(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}
	defer s.running.Store(false)

	s.logger.Info("sweeper started", "interval", s.cfg.Interval.String())
	s.Sweep(time.Now())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep performs one pass and returns the number of entries removed.
func (s *Sweeper) Sweep(now time.Time) int {
	removed := 0

	if s.cfg.Cache != nil && s.cfg.CacheRetention > 0 {
		n, err := s.cfg.Cache.Sweep(s.cfg.CacheRetention)
		if err != nil {
			s.logger.Warn("cache sweep failed", "error", err)
		}
		removed += n
	}

	// Scratch dirs are normally deleted by the job that owns them; any
	// survivor is debris from a crash.
	removed += s.removeOlderThan(s.cfg.ScratchDir, now.Add(-24*time.Hour))

	if s.cfg.ArtifactRetention > 0 {
		removed += s.removeOlderThan(s.cfg.ArtifactsDir, now.Add(-s.cfg.ArtifactRetention))
	}

	if removed > 0 {
		s.logger.Info("sweep complete", "removed", removed)
	}
	return removed
}

// removeOlderThan deletes direct children of dir whose modification
// time predates cutoff.
func (s *Sweeper) removeOlderThan(dir string, cutoff time.Time) int {
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("sweep cannot read dir", "dir", logging.SanitizePath(dir), "error", err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(p); err != nil {
			s.logger.Warn("sweep cannot remove", "path", logging.SanitizePath(p), "error", err)
			continue
		}
		removed++
	}
	return removed
}
