// Package probe inspects media files with ffprobe and reports on the
// availability of the ffmpeg toolchain.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// MediaInfo is the subset of ffprobe output the render pipeline needs.
type MediaInfo struct {
	Path       string  `json:"path"`
	Format     string  `json:"format"`
	Duration   float64 `json:"duration"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	VideoCodec string  `json:"videoCodec,omitempty"`
	AudioCodec string  `json:"audioCodec,omitempty"`
	HasVideo   bool    `json:"hasVideo"`
	HasAudio   bool    `json:"hasAudio"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
	BitRate    int64   `json:"bitRate,omitempty"`
}

// ProbeError wraps any failure to inspect a source file.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Prober inspects a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*MediaInfo, error)
}

// FFprobe shells out to the ffprobe binary.
type FFprobe struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

func NewFFprobe(bin string, timeout time.Duration, logger *slog.Logger) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{bin: bin, timeout: timeout, logger: logger}
}

func (f *FFprobe) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, f.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ProbeError{Path: path, Err: fmt.Errorf("timed out after %s", f.timeout)}
		}
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))}
	}

	info, err := parseInfo(stdout.Bytes(), path)
	if err != nil {
		return nil, err
	}
	if f.logger != nil {
		f.logger.Debug("probed media",
			"path", path,
			"duration", info.Duration,
			"hasAudio", info.HasAudio,
			"elapsed", time.Since(start).Round(time.Millisecond).String(),
		)
	}
	return info, nil
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

func parseInfo(raw []byte, path string) (*MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("unparseable output: %w", err)}
	}

	info := &MediaInfo{
		Path:   path,
		Format: out.Format.FormatName,
	}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	info.BitRate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.FPS = parseFramerate(s.AvgFrameRate)
			if info.FPS == 0 {
				info.FPS = parseFramerate(s.RFrameRate)
			}
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioCodec = s.CodecName
			info.SampleRate, _ = strconv.Atoi(s.SampleRate)
			info.Channels = s.Channels
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		}
	}

	if !info.HasVideo && !info.HasAudio {
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("no decodable streams")}
	}
	if info.Duration <= 0 && !info.IsImage() {
		return nil, &ProbeError{Path: path, Err: fmt.Errorf("zero duration")}
	}
	return info, nil
}

// IsImage recognizes single-frame inputs, which legitimately carry no
// duration and get a caller-chosen display duration instead.
func (m *MediaInfo) IsImage() bool {
	if !m.HasVideo || m.HasAudio {
		return false
	}
	for _, name := range []string{"image2", "png_pipe", "mjpeg", "webp_pipe", "gif"} {
		if strings.Contains(m.Format, name) {
			return true
		}
	}
	return false
}

// parseFramerate converts ffprobe's fractional rate ("30000/1001") to a
// float, returning 0 for unusable values.
func parseFramerate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Stub returns canned results for tests.
type Stub struct {
	Infos map[string]*MediaInfo
	Err   error
}

func (s *Stub) Probe(_ context.Context, path string) (*MediaInfo, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if info, ok := s.Infos[path]; ok {
		return info, nil
	}
	return nil, &ProbeError{Path: path, Err: fmt.Errorf("no stub entry")}
}
