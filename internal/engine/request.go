package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clipforge/clipforge-render/internal/config"
	"github.com/clipforge/clipforge-render/internal/filtergraph"
)

// ValidationError marks a malformed job description. It is reported to
// the caller at submission time, before a job record exists.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid render request: " + e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ClipSpec is one entry of the ordered clip list.
type ClipSpec struct {
	SourceURL string  `json:"sourceUrl"`
	Duration  float64 `json:"duration,omitempty"` // display duration for images
	TrimStart float64 `json:"trimStart,omitempty"`
	TrimEnd   float64 `json:"trimEnd,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Volume    float64 `json:"volume,omitempty"`
	Muted     bool    `json:"muted,omitempty"`
}

// OutputSpec selects the encode target.
type OutputSpec struct {
	Resolution string `json:"resolution,omitempty"` // "1920x1080" or "1080p"
	Quality    string `json:"quality,omitempty"`    // low, medium, high
	Format     string `json:"format,omitempty"`
	FPS        int    `json:"fps,omitempty"`
}

// RenderRequest is the submitted job description.
type RenderRequest struct {
	Clips        []ClipSpec                `json:"clips"`
	Enhancements *filtergraph.Enhancements `json:"enhancements,omitempty"`
	Output       OutputSpec                `json:"output"`
	CallbackURL  string                    `json:"callbackUrl,omitempty"`
}

func (r *RenderRequest) Validate() error {
	if len(r.Clips) == 0 {
		return validationErrorf("at least one clip is required")
	}
	for i, c := range r.Clips {
		if strings.TrimSpace(c.SourceURL) == "" {
			return validationErrorf("clip %d: sourceUrl is required", i)
		}
		if c.TrimStart < 0 || c.TrimEnd < 0 {
			return validationErrorf("clip %d: negative trim", i)
		}
		if c.TrimEnd > 0 && c.TrimStart >= c.TrimEnd {
			return validationErrorf("clip %d: trimStart %v must be before trimEnd %v", i, c.TrimStart, c.TrimEnd)
		}
		if c.Speed < 0 {
			return validationErrorf("clip %d: negative speed", i)
		}
		if c.Duration < 0 {
			return validationErrorf("clip %d: negative duration", i)
		}
	}
	if e := r.Enhancements; e != nil {
		if e.Speed < 0 {
			return validationErrorf("negative global speed")
		}
		for _, t := range e.Transitions {
			if t.After < 0 || t.After >= len(r.Clips)-1 {
				return validationErrorf("transition after clip %d references a nonexistent boundary", t.After)
			}
			if t.Duration < 0 {
				return validationErrorf("transition after clip %d: negative duration", t.After)
			}
		}
		if e.Music != nil && strings.TrimSpace(e.Music.URL) == "" {
			return validationErrorf("music entry without url")
		}
		if e.Voice != nil && strings.TrimSpace(e.Voice.URL) == "" {
			return validationErrorf("voice entry without url")
		}
		for i, o := range e.TextOverlays {
			if strings.TrimSpace(o.Text) == "" {
				return validationErrorf("text overlay %d: empty text", i)
			}
			if o.End > 0 && o.Start >= o.End {
				return validationErrorf("text overlay %d: start %v must be before end %v", i, o.Start, o.End)
			}
		}
	}
	if q := r.Output.Quality; q != "" {
		switch q {
		case config.QualityLow, config.QualityMedium, config.QualityHigh:
		default:
			return validationErrorf("unknown quality %q", q)
		}
	}
	if _, _, err := parseResolution(r.Output.Resolution); err != nil {
		return validationErrorf("%v", err)
	}
	return nil
}

// parseResolution accepts "WxH" or a named tier; empty means 1080p.
// Dimensions are rounded down to even values for the encoder.
func parseResolution(s string) (int, int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1080p", "fhd":
		return 1920, 1080, nil
	case "720p", "hd":
		return 1280, 720, nil
	case "480p", "sd":
		return 854, 480, nil
	case "vertical", "9x16":
		return 1080, 1920, nil
	case "square", "1x1":
		return 1080, 1080, nil
	}

	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("unrecognized resolution %q", s)
	}
	width, err1 := strconv.Atoi(strings.TrimSpace(w))
	height, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("unrecognized resolution %q", s)
	}
	if width < 16 || height < 16 || width > 7680 || height > 7680 {
		return 0, 0, fmt.Errorf("resolution %q out of range", s)
	}
	return width - width%2, height - height%2, nil
}

// resolveOutput folds the quality preset table and the request's output
// section into concrete encoder settings.
func resolveOutput(spec OutputSpec, presets config.PresetTable) (filtergraph.OutputSettings, error) {
	width, height, err := parseResolution(spec.Resolution)
	if err != nil {
		return filtergraph.OutputSettings{}, err
	}
	p := presets.Lookup(spec.Quality)
	fps := spec.FPS
	if fps <= 0 {
		fps = filtergraph.DefaultFPS
	}
	format := spec.Format
	if format == "" {
		format = "mp4"
	}
	return filtergraph.OutputSettings{
		Width:        width,
		Height:       height,
		FPS:          fps,
		CRF:          p.CRF,
		Preset:       p.Preset,
		AudioBitrate: p.AudioBitrate,
		Format:       format,
	}, nil
}
