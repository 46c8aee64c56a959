package timeline

import (
	"fmt"
	"sort"
)

// Timeline is the project state: every entity the editor can mutate and
// the undo history snapshots. Selection and playback state live on the
// Editor, not here, so snapshots stay free of ephemeral UI state.
//
// A Timeline is not safe for concurrent use; it is owned by one editing
// session and handed to readers only through Clone.
type Timeline struct {
	Tracks      []*Track         `json:"tracks"`
	Clips       map[string]*Clip `json:"clips"`
	AudioTracks []*AudioTrack    `json:"audioTracks"`
	Transitions []*Transition    `json:"transitions"`
	Markers     []*Marker        `json:"markers"`
}

// New returns an empty timeline with a single default video track.
func New() *Timeline {
	return &Timeline{
		Tracks: []*Track{
			{ID: NewID(), Name: "Video 1", Type: TrackTypeVideo, Visible: true},
		},
		Clips: make(map[string]*Clip),
	}
}

// Clone returns a deep copy. Snapshots handed to the history ring, the
// preview renderer and the graph builder all go through here.
func (t *Timeline) Clone() *Timeline {
	c := &Timeline{
		Tracks:      make([]*Track, len(t.Tracks)),
		Clips:       make(map[string]*Clip, len(t.Clips)),
		AudioTracks: make([]*AudioTrack, len(t.AudioTracks)),
		Transitions: make([]*Transition, len(t.Transitions)),
		Markers:     make([]*Marker, len(t.Markers)),
	}
	for i, tr := range t.Tracks {
		trackCopy := *tr
		trackCopy.ClipIDs = append([]string(nil), tr.ClipIDs...)
		c.Tracks[i] = &trackCopy
	}
	for id, clip := range t.Clips {
		clipCopy := *clip
		c.Clips[id] = &clipCopy
	}
	for i, a := range t.AudioTracks {
		audioCopy := *a
		c.AudioTracks[i] = &audioCopy
	}
	for i, tr := range t.Transitions {
		transCopy := *tr
		c.Transitions[i] = &transCopy
	}
	for i, m := range t.Markers {
		markerCopy := *m
		c.Markers[i] = &markerCopy
	}
	return c
}

// Clip returns the clip with the given ID, or nil.
func (t *Timeline) Clip(id string) *Clip {
	return t.Clips[id]
}

// Track returns the track with the given ID, or nil.
func (t *Timeline) Track(id string) *Track {
	for _, tr := range t.Tracks {
		if tr.ID == id {
			return tr
		}
	}
	return nil
}

// AudioTrack returns the audio track with the given ID, or nil.
func (t *Timeline) AudioTrack(id string) *AudioTrack {
	for _, a := range t.AudioTracks {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// TrackClips returns a track's clips in container order.
func (t *Timeline) TrackClips(trackID string) []*Clip {
	tr := t.Track(trackID)
	if tr == nil {
		return nil
	}
	clips := make([]*Clip, 0, len(tr.ClipIDs))
	for _, id := range tr.ClipIDs {
		if c, ok := t.Clips[id]; ok {
			clips = append(clips, c)
		}
	}
	return clips
}

// TransitionAfter returns the transition bound to the cut following the
// given clip, or nil.
func (t *Timeline) TransitionAfter(clipID string) *Transition {
	for _, tr := range t.Transitions {
		if tr.AfterClipID == clipID {
			return tr
		}
	}
	return nil
}

// Sequence returns the render order: the clips of the first visible video
// track sorted by start time. This is what the duration calculator, the
// EDL exporter and the preview renderer consume.
func (t *Timeline) Sequence() []*Clip {
	for _, tr := range t.Tracks {
		if tr.Type != TrackTypeVideo || !tr.Visible {
			continue
		}
		clips := t.TrackClips(tr.ID)
		sort.SliceStable(clips, func(i, j int) bool {
			return clips[i].StartTime < clips[j].StartTime
		})
		return clips
	}
	return nil
}

// Validate checks referential integrity and per-clip invariants across the
// whole document. Used on deserialized documents before they reach the
// exporter or the render pipeline.
func (t *Timeline) Validate() error {
	seen := make(map[string]bool, len(t.Clips))
	for _, tr := range t.Tracks {
		for _, id := range tr.ClipIDs {
			c, ok := t.Clips[id]
			if !ok {
				return fmt.Errorf("track %s references unknown clip %s", tr.ID, id)
			}
			if c.TrackID != tr.ID {
				return fmt.Errorf("clip %s claims track %s but is listed on %s", id, c.TrackID, tr.ID)
			}
			if seen[id] {
				return fmt.Errorf("clip %s appears on more than one track", id)
			}
			seen[id] = true
		}
	}
	for id, c := range t.Clips {
		if !seen[id] {
			return fmt.Errorf("clip %s is not referenced by any track", id)
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, tr := range t.Transitions {
		if _, ok := t.Clips[tr.AfterClipID]; !ok {
			return fmt.Errorf("transition %s references unknown clip %s", tr.ID, tr.AfterClipID)
		}
		if tr.Duration < 0 {
			return fmt.Errorf("transition %s has negative duration", tr.ID)
		}
	}
	return nil
}
