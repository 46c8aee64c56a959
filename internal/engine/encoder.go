package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// maxStderrTail is the retained tail of encoder diagnostics.
	maxStderrTail = 8 * 1024
	// maxCaptureBytes caps how much subprocess output is inspected at
	// all; anything past it is dropped rather than buffered.
	maxCaptureBytes = 50 * 1024 * 1024
	// excerptLimit bounds the user-facing diagnostic excerpt.
	excerptLimit = 512
)

// Encoder runs the external encoder binary with a prepared argument
// list. The binary is opaque: the only protocol is argv in, progress
// markers and diagnostics on stderr, and an exit code.
type Encoder interface {
	// Run executes the encoder. onProgress, when non-nil, receives the
	// output timestamp in seconds each time the encoder reports one.
	// The returned string is the retained tail of stderr, useful for
	// diagnostics whether or not err is nil.
	Run(ctx context.Context, args []string, onProgress func(seconds float64)) (string, error)
}

// EncodeError reports a nonzero encoder exit, carrying a filtered
// excerpt of its diagnostics.
type EncodeError struct {
	ExitCode int
	Excerpt  string
}

func (e *EncodeError) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("encoder exited %d", e.ExitCode)
	}
	return fmt.Sprintf("encoder exited %d: %s", e.ExitCode, e.Excerpt)
}

// TimeoutError reports a subprocess killed at the wall-clock limit.
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("encode exceeded the %s limit and was terminated", e.Limit)
}

// FFmpeg invokes the ffmpeg binary as a subprocess.
type FFmpeg struct {
	bin    string
	logger *slog.Logger
}

func NewFFmpeg(bin string, logger *slog.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin, logger: logger}
}

func (f *FFmpeg) Run(ctx context.Context, args []string, onProgress func(seconds float64)) (string, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, f.bin, args...)
	tail := &tailWriter{limit: maxStderrTail, cap: maxCaptureBytes}
	var stderr io.Writer = tail
	if onProgress != nil {
		stderr = io.MultiWriter(tail, &progressWriter{fn: onProgress})
	}
	cmd.Stderr = stderr
	cmd.Stdout = io.Discard

	if f.logger != nil {
		f.logger.Debug("executing encoder", "bin", f.bin, "args", len(args))
	}

	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		if f.logger != nil {
			f.logger.Info("encoder finished", "duration_ms", elapsed.Milliseconds())
		}
		return tail.String(), nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		if f.logger != nil {
			f.logger.Warn("encoder killed on timeout", "duration_ms", elapsed.Milliseconds())
		}
		return tail.String(), context.DeadlineExceeded
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	if f.logger != nil {
		f.logger.Warn("encoder failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(tail.String(), excerptLimit),
		)
	}
	return tail.String(), &EncodeError{ExitCode: exitCode, Excerpt: excerpt(tail.String(), excerptLimit)}
}

// tailWriter keeps only the last `limit` bytes written, and stops
// inspecting input entirely once `cap` total bytes have passed through.
type tailWriter struct {
	buf   bytes.Buffer
	limit int
	cap   int64
	total int64
}

func (w *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	if w.cap > 0 && w.total >= w.cap {
		return n, nil
	}
	w.total += int64(n)
	w.buf.Write(p)
	if w.buf.Len() > w.limit {
		b := w.buf.Bytes()
		keep := b[len(b)-w.limit:]
		rest := make([]byte, len(keep))
		copy(rest, keep)
		w.buf.Reset()
		w.buf.Write(rest)
	}
	return n, nil
}

func (w *tailWriter) String() string {
	return w.buf.String()
}

// timePattern matches ffmpeg's periodic status line timestamp,
// e.g. "time=00:01:23.45".
var timePattern = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

// progressWriter scans the encoder's stderr stream for timestamp
// markers. ffmpeg emits status lines terminated by \r, so the writer
// splits on both \r and \n and keeps the unterminated remainder.
type progressWriter struct {
	fn      func(seconds float64)
	partial []byte
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)
	for {
		idx := bytes.IndexAny(w.partial, "\r\n")
		if idx < 0 {
			break
		}
		line := string(w.partial[:idx])
		w.partial = w.partial[idx+1:]
		if secs, ok := parseOutTime(line); ok {
			w.fn(secs)
		}
	}
	// Guard against a pathological stream with no line breaks.
	if len(w.partial) > 4096 {
		w.partial = w.partial[len(w.partial)-4096:]
	}
	return len(p), nil
}

func parseOutTime(line string) (float64, bool) {
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	seconds, _ := strconv.ParseFloat(m[3], 64)
	return hours*3600 + minutes*60 + seconds, true
}

// errorKeywords mark stderr lines worth surfacing to the user ahead of
// a raw tail.
var errorKeywords = []string{
	"error",
	"invalid",
	"failed",
	"unable to",
	"no such file",
	"permission denied",
	"not found",
	"unsupported",
	"conversion failed",
}

// excerpt condenses a stderr tail into a short user-facing diagnostic:
// lines matching error keywords first, the raw tail otherwise.
func excerpt(tail string, limit int) string {
	tail = strings.TrimSpace(tail)
	if tail == "" {
		return ""
	}

	var matched []string
	for _, line := range strings.FieldsFunc(tail, func(r rune) bool { return r == '\n' || r == '\r' }) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range errorKeywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, line)
				break
			}
		}
	}

	if len(matched) > 0 {
		return truncate(strings.Join(matched, "; "), limit)
	}
	return truncate(tail, limit)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
