package filtergraph

import "fmt"

// Fixed intermediate sample rate. Every audio branch is resampled to this
// before any concat, crossfade or mix; mismatched source rates otherwise
// desync or corrupt the joined stream.
const SampleRate = 44100

// DefaultFPS is the frame rate clips are normalized to ahead of
// crossfades, which require matching timebases on both inputs.
const DefaultFPS = 30

// SourceClip is one resolved input: a fetched asset plus its probed
// metadata and the trim/speed/volume state carried over from the edit.
type SourceClip struct {
	Path      string
	IsImage   bool
	HasAudio  bool
	Duration  float64 // probed container duration, seconds
	Width     int
	Height    int
	TrimStart float64
	TrimEnd   float64 // 0 means "to end of source"
	Speed     float64 // 1 = native; <1 slow motion
	Volume    float64 // 1 = unity, 0 = unset; silence is Muted
	Muted     bool

	// DisplayDuration applies to images only.
	DisplayDuration float64
}

// trimWindow returns the effective source window.
func (c *SourceClip) trimWindow() (float64, float64) {
	start := c.TrimStart
	end := c.TrimEnd
	if end <= 0 || end > c.Duration {
		end = c.Duration
	}
	if start < 0 {
		start = 0
	}
	return start, end
}

// speed returns the effective playback speed.
func (c *SourceClip) speed() float64 {
	if c.Speed <= 0 {
		return 1
	}
	return c.Speed
}

// AdjustedDuration is the clip's output-side length after trim and speed.
// All offset math in the builder runs on adjusted durations.
func (c *SourceClip) AdjustedDuration() float64 {
	if c.IsImage {
		if c.DisplayDuration > 0 {
			return c.DisplayDuration
		}
		return c.Duration
	}
	start, end := c.trimWindow()
	return (end - start) / c.speed()
}

// Transition requests a crossfade at the cut after clip index After.
type Transition struct {
	After    int     `json:"after"`
	Type     string  `json:"type"`
	Duration float64 `json:"duration"`
}

// AudioMix describes one background audio layer (music bed or voiceover).
type AudioMix struct {
	Path            string  `json:"-"`
	URL             string  `json:"url"`
	Volume          float64 `json:"volume"`
	FadeIn          float64 `json:"fadeIn"`
	FadeOut         float64 `json:"fadeOut"`
	ExtendPastVideo bool    `json:"extendPastVideo"`
}

// TextOverlay is a styled text layer over the final video.
type TextOverlay struct {
	Text      string   `json:"text"`
	Anchor    string   `json:"anchor"` // top, center, bottom
	XPercent  *float64 `json:"xPercent,omitempty"`
	YPercent  *float64 `json:"yPercent,omitempty"`
	Start     float64  `json:"start"`
	End       float64  `json:"end"` // 0 = until end of output
	FontSize  int      `json:"fontSize"`
	FontColor string   `json:"fontColor"`
}

// Enhancements is everything beyond plain sequential playback.
type Enhancements struct {
	Speed        float64       `json:"speed"` // global multiplier, 0/1 = none
	FadeIn       float64       `json:"fadeIn"`
	FadeOut      float64       `json:"fadeOut"`
	Transitions  []Transition  `json:"transitions"`
	Music        *AudioMix     `json:"music"`
	Voice        *AudioMix     `json:"voice"`
	TextOverlays []TextOverlay `json:"textOverlays"`
}

// Active reports whether any enhancement forces a re-encode.
func (e *Enhancements) Active() bool {
	if e == nil {
		return false
	}
	return len(e.Transitions) > 0 ||
		e.Music != nil || e.Voice != nil ||
		len(e.TextOverlays) > 0 ||
		(e.Speed > 0 && e.Speed != 1) ||
		e.FadeIn > 0 || e.FadeOut > 0
}

// OutputSettings is the resolved encode target.
type OutputSettings struct {
	Width        int
	Height       int
	FPS          int
	CRF          int
	Preset       string
	AudioBitrate string
	Format       string
}

// InputKind tags a plan input for argv construction.
type InputKind int

const (
	InputVideo InputKind = iota
	InputImage
	InputAudio
)

// InputSpec is one -i argument in order, with the options it needs.
type InputSpec struct {
	Path string
	Kind InputKind
	// LoopDuration makes a still image into a video stream of this length.
	LoopDuration float64
	// InPoint/OutPoint trim a stream-copy segment (concat demuxer only).
	InPoint  float64
	OutPoint float64
}

// PlanMode selects between the two encode strategies.
type PlanMode int

const (
	// ModeFilter re-encodes through a filter graph.
	ModeFilter PlanMode = iota
	// ModeStreamCopy repackages source bytes with no re-encode.
	ModeStreamCopy
)

func (m PlanMode) String() string {
	if m == ModeStreamCopy {
		return "stream-copy"
	}
	return "filter"
}

// Plan is the builder's output: everything the engine needs to construct
// the encoder invocation, with no ffmpeg syntax outside this package.
type Plan struct {
	Mode     PlanMode
	Inputs   []InputSpec
	Graph    *Graph
	VideoOut Stream
	AudioOut Stream
	// TotalDuration is the expected output length in seconds, used for
	// encode progress estimation.
	TotalDuration float64
}

// BuildError marks an invalid clip/enhancement combination.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string {
	return "unsupported configuration: " + e.Reason
}

func buildErrorf(format string, args ...any) *BuildError {
	return &BuildError{Reason: fmt.Sprintf(format, args...)}
}
