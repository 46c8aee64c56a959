// Package timeline holds the editable project model: tracks, clips, audio
// tracks, transitions and markers, plus the duration math and the bounded
// undo history. The model is owned by a single editing session; the render
// pipeline only ever reads deep-copy snapshots of it.
package timeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	ClipTypeVideo = "video"
	ClipTypeImage = "image"
)

const (
	TrackTypeVideo   = "video"
	TrackTypeAudio   = "audio"
	TrackTypeText    = "text"
	TrackTypeEffects = "effects"
)

const (
	AudioTypeMusic = "music"
	AudioTypeVoice = "voice"
	AudioTypeSFX   = "sfx"
)

const (
	// MinTimelineDuration is the floor returned by Duration regardless of
	// content, so exports and the preview scrubber always have room.
	MinTimelineDuration = 60.0

	// DefaultImageDuration is the display duration assigned to image clips
	// added without an explicit duration.
	DefaultImageDuration = 4.0

	// DefaultHistoryDepth bounds the undo snapshot ring.
	DefaultHistoryDepth = 50

	// DefaultSnapThreshold is the snapping distance in seconds.
	DefaultSnapThreshold = 0.3
)

var (
	ErrClipNotFound     = errors.New("clip not found")
	ErrTrackNotFound    = errors.New("track not found")
	ErrAudioNotFound    = errors.New("audio track not found")
	ErrMarkerNotFound   = errors.New("marker not found")
	ErrTrackLocked      = errors.New("track is locked")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrNothingToRedo    = errors.New("nothing to redo")
	ErrSplitOutOfRange  = errors.New("split point outside clip")
	ErrInvalidTrackType = errors.New("invalid track type")
)

// Clip is a single video or image asset placed on a track.
// All times are in seconds. For video clips Duration is always derived:
// (TrimEnd-TrimStart)/Speed. Image clips use Duration as a fixed display
// length and ignore trim and speed.
type Clip struct {
	ID               string  `json:"id"`
	SourceURL        string  `json:"sourceUrl"`
	Type             string  `json:"type"`
	TrackID          string  `json:"trackId"`
	StartTime        float64 `json:"startTime"`
	Duration         float64 `json:"duration"`
	TrimStart        float64 `json:"trimStart"`
	TrimEnd          float64 `json:"trimEnd"`
	OriginalDuration float64 `json:"originalDuration"`
	Speed            float64 `json:"speed"`
	Volume           float64 `json:"volume"`
	Muted            bool    `json:"muted"`
}

// Validate checks the clip's structural invariants.
func (c *Clip) Validate() error {
	if c.StartTime < 0 {
		return fmt.Errorf("clip %s: startTime %f is negative", c.ID, c.StartTime)
	}
	switch c.Type {
	case ClipTypeVideo:
		if c.Speed <= 0 {
			return fmt.Errorf("clip %s: speed must be positive, got %f", c.ID, c.Speed)
		}
		if c.TrimStart >= c.TrimEnd {
			return fmt.Errorf("clip %s: trimStart %f must be before trimEnd %f", c.ID, c.TrimStart, c.TrimEnd)
		}
		if c.OriginalDuration > 0 && c.TrimEnd > c.OriginalDuration {
			return fmt.Errorf("clip %s: trimEnd %f exceeds source duration %f", c.ID, c.TrimEnd, c.OriginalDuration)
		}
	case ClipTypeImage:
		if c.Duration <= 0 {
			return fmt.Errorf("clip %s: image display duration must be positive", c.ID)
		}
	default:
		return fmt.Errorf("clip %s: unknown type %q", c.ID, c.Type)
	}
	return nil
}

// End returns the clip's end position on the timeline.
func (c *Clip) End() float64 {
	return c.StartTime + c.Duration
}

// Track is an ordered container of clip references.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	ClipIDs []string `json:"clipIds"`
	Locked  bool     `json:"locked"`
	Visible bool     `json:"visible"`
}

// AudioTrack is an independent audio layer (music bed, voiceover, sfx)
// that may overlap the video timeline arbitrarily.
type AudioTrack struct {
	ID        string  `json:"id"`
	URL       string  `json:"url"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Volume    float64 `json:"volume"`
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
}

// End returns the audio track's end position on the timeline.
func (a *AudioTrack) End() float64 {
	return a.StartTime + a.Duration
}

// Transition binds to the clip immediately preceding a cut. Only
// sequential same-track transitions are modeled.
type Transition struct {
	ID          string  `json:"id"`
	AfterClipID string  `json:"afterClipId"`
	Type        string  `json:"type"`
	Duration    float64 `json:"duration"`
}

// Marker is a timeline annotation with no playback effect.
type Marker struct {
	ID    string  `json:"id"`
	Time  float64 `json:"time"`
	Label string  `json:"label"`
	Color string  `json:"color"`
}

// SelectionState is ephemeral UI state, excluded from snapshots and history.
type SelectionState struct {
	SelectedClipIDs    map[string]bool
	LastSelectedClipID string
}

// NewID returns a fresh identifier for timeline entities.
func NewID() string {
	return uuid.NewString()
}
