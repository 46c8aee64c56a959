package probe

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
)

const defaultDoctorTTL = 5 * time.Minute

var versionPattern = regexp.MustCompile(`version\s+(\S+)`)

// ToolStatus describes one binary of the ffmpeg toolchain.
type ToolStatus struct {
	Present bool   `json:"present"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report is the result of a toolchain health check.
type Report struct {
	FFmpeg   ToolStatus `json:"ffmpeg"`
	FFprobe  ToolStatus `json:"ffprobe"`
	Ready    bool       `json:"ready"`
	ProbedAt time.Time  `json:"probedAt"`
}

// Checker verifies the encoding toolchain is usable.
type Checker interface {
	Check(ctx context.Context) (*Report, error)
}

// Doctor locates and version-checks the configured binaries.
type Doctor struct {
	ffmpegBin  string
	ffprobeBin string
	logger     *slog.Logger
}

func NewDoctor(ffmpegBin, ffprobeBin string, logger *slog.Logger) *Doctor {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Doctor{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin, logger: logger}
}

func (d *Doctor) Check(ctx context.Context) (*Report, error) {
	r := &Report{
		FFmpeg:   checkTool(ctx, d.ffmpegBin),
		FFprobe:  checkTool(ctx, d.ffprobeBin),
		ProbedAt: time.Now().UTC(),
	}
	r.Ready = r.FFmpeg.Present && r.FFprobe.Present
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.logger != nil && !r.Ready {
		d.logger.Warn("toolchain incomplete",
			"ffmpeg", r.FFmpeg.Present,
			"ffprobe", r.FFprobe.Present,
		)
	}
	return r, nil
}

func checkTool(ctx context.Context, bin string) ToolStatus {
	path, err := exec.LookPath(bin)
	if err != nil {
		return ToolStatus{Error: err.Error()}
	}

	cmd := exec.CommandContext(ctx, path, "-version")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return ToolStatus{Path: path, Error: err.Error()}
	}

	status := ToolStatus{Present: true, Path: path}
	firstLine, _, _ := strings.Cut(stdout.String(), "\n")
	if m := versionPattern.FindStringSubmatch(firstLine); m != nil {
		status.Version = m[1]
	}
	return status
}

// CachedDoctor caches check results with a TTL so request handlers do
// not spawn a subprocess per call.
type CachedDoctor struct {
	checker Checker
	ttl     time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	cached *Report
}

func NewCachedDoctor(checker Checker, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		checker: checker,
		ttl:     defaultDoctorTTL,
		logger:  logger,
	}
}

// Get returns the cached report if fresh, otherwise re-checks.
func (d *CachedDoctor) Get(ctx context.Context) (*Report, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		r := d.cached
		d.mu.RUnlock()
		return r, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Report {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new check regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.checker.Check(ctx)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("toolchain check failed", "error", err)
		}
		if d.cached != nil {
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = r
	return r, nil
}

// Invalidate clears the cached report.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
