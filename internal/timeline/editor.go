package timeline

import (
	"fmt"
	"math"
)

// Editor is an editing session over one timeline. It owns the live model,
// the undo history and the ephemeral selection/playback state. Every
// mutating operation pushes a snapshot first, so Undo restores the state
// exactly as it was before the call.
type Editor struct {
	timeline *Timeline
	history  *History

	selection SelectionState
	playhead  float64

	snapEnabled   bool
	snapThreshold float64
}

// NewEditor starts a session on an empty timeline.
func NewEditor() *Editor {
	return NewEditorFrom(New())
}

// NewEditorFrom starts a session on an existing document (e.g. a project
// loaded from disk). The editor takes ownership of t.
func NewEditorFrom(t *Timeline) *Editor {
	return &Editor{
		timeline:      t,
		history:       NewHistory(DefaultHistoryDepth),
		selection:     SelectionState{SelectedClipIDs: make(map[string]bool)},
		snapEnabled:   true,
		snapThreshold: DefaultSnapThreshold,
	}
}

// Snapshot returns a deep copy of the current state for read-only
// consumers (preview renderer, exporters, graph builder).
func (e *Editor) Snapshot() *Timeline {
	return e.timeline.Clone()
}

// Duration returns the current global timeline duration.
func (e *Editor) Duration() float64 {
	return e.timeline.Duration()
}

// SetPlayhead moves the playhead; it is also a snap target for MoveClip.
func (e *Editor) SetPlayhead(t float64) {
	if t < 0 {
		t = 0
	}
	e.playhead = t
}

// Playhead returns the playhead position.
func (e *Editor) Playhead() float64 { return e.playhead }

// SetSnapping toggles snap-on-move.
func (e *Editor) SetSnapping(enabled bool) { e.snapEnabled = enabled }

// CanUndo reports whether Undo would succeed.
func (e *Editor) CanUndo() bool { return e.history.CanUndo() }

// CanRedo reports whether Redo would succeed.
func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

func (e *Editor) push() {
	e.history.Push(e.timeline.Clone())
}

// Undo restores the state before the most recent mutation.
func (e *Editor) Undo() error {
	snap, err := e.history.Undo(e.timeline.Clone())
	if err != nil {
		return err
	}
	e.timeline = snap
	e.pruneSelection()
	return nil
}

// Redo re-applies the most recently undone mutation.
func (e *Editor) Redo() error {
	snap, err := e.history.Redo(e.timeline.Clone())
	if err != nil {
		return err
	}
	e.timeline = snap
	e.pruneSelection()
	return nil
}

// AddTrack appends a new track of the given type.
func (e *Editor) AddTrack(name, trackType string) (*Track, error) {
	switch trackType {
	case TrackTypeVideo, TrackTypeAudio, TrackTypeText, TrackTypeEffects:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTrackType, trackType)
	}
	e.push()
	tr := &Track{ID: NewID(), Name: name, Type: trackType, Visible: true}
	e.timeline.Tracks = append(e.timeline.Tracks, tr)
	return tr, nil
}

// AddClip places a clip on a track. A negative StartTime means "append
// after the track's last clip". The clip's ID is assigned when empty, and
// its Duration is re-derived from trim and speed.
func (e *Editor) AddClip(trackID string, clip Clip) (*Clip, error) {
	tr := e.timeline.Track(trackID)
	if tr == nil {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}
	if tr.Locked {
		return nil, fmt.Errorf("%w: %s", ErrTrackLocked, trackID)
	}

	if clip.ID == "" {
		clip.ID = NewID()
	}
	clip.TrackID = trackID
	if clip.Type == ClipTypeImage && clip.Duration <= 0 {
		clip.Duration = DefaultImageDuration
	}
	if clip.Type == ClipTypeVideo && clip.Speed == 0 {
		clip.Speed = 1
	}
	if clip.Type == ClipTypeVideo && clip.TrimEnd == 0 && clip.OriginalDuration > 0 {
		clip.TrimEnd = clip.OriginalDuration
	}
	if clip.StartTime < 0 {
		end := 0.0
		for _, c := range e.timeline.TrackClips(trackID) {
			if c.End() > end {
				end = c.End()
			}
		}
		clip.StartTime = end
	}
	RecalcDuration(&clip)
	if err := clip.Validate(); err != nil {
		return nil, err
	}

	e.push()
	added := clip
	e.timeline.Clips[added.ID] = &added
	tr.ClipIDs = append(tr.ClipIDs, added.ID)
	return &added, nil
}

// RemoveClip deletes a clip and any transition bound to it. Deletion is
// permitted even on locked tracks.
func (e *Editor) RemoveClip(id string) error {
	c := e.timeline.Clip(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	e.push()
	e.removeClipLocked(c)
	return nil
}

func (e *Editor) removeClipLocked(c *Clip) {
	if tr := e.timeline.Track(c.TrackID); tr != nil {
		tr.ClipIDs = removeString(tr.ClipIDs, c.ID)
	}
	delete(e.timeline.Clips, c.ID)

	kept := e.timeline.Transitions[:0]
	for _, tn := range e.timeline.Transitions {
		if tn.AfterClipID != c.ID {
			kept = append(kept, tn)
		}
	}
	e.timeline.Transitions = kept

	delete(e.selection.SelectedClipIDs, c.ID)
	if e.selection.LastSelectedClipID == c.ID {
		e.selection.LastSelectedClipID = ""
	}
}

// MoveClip changes a clip's start position, snapping to 0, the playhead,
// or another clip's edge when snapping is enabled and the target is
// within the snap threshold.
func (e *Editor) MoveClip(id string, newStart float64) error {
	c := e.timeline.Clip(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	if tr := e.timeline.Track(c.TrackID); tr != nil && tr.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, tr.ID)
	}
	if newStart < 0 {
		newStart = 0
	}
	if e.snapEnabled {
		newStart = e.snapTarget(id, newStart)
	}
	e.push()
	e.timeline.Clips[id].StartTime = newStart
	return nil
}

// snapTarget returns the snapped start position for a proposed move.
// Candidates: timeline origin, the playhead, and every other clip's start
// and end. The nearest candidate within the threshold wins.
func (e *Editor) snapTarget(movingID string, proposed float64) float64 {
	best := proposed
	bestDist := e.snapThreshold
	consider := func(candidate float64) {
		d := math.Abs(proposed - candidate)
		if d <= bestDist {
			best = candidate
			bestDist = d
		}
	}
	consider(0)
	consider(e.playhead)
	for id, c := range e.timeline.Clips {
		if id == movingID {
			continue
		}
		consider(c.StartTime)
		consider(c.End())
	}
	return best
}

// SplitClip cuts a clip at an absolute timeline position, producing two
// new clips whose trim ranges partition the original at the cut point.
// The original clip is removed; transitions bound to it move to the
// right-hand part (the cut they follow is unchanged).
func (e *Editor) SplitClip(id string, at float64) (*Clip, *Clip, error) {
	c := e.timeline.Clip(id)
	if c == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	tr := e.timeline.Track(c.TrackID)
	if tr == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrTrackNotFound, c.TrackID)
	}
	if tr.Locked {
		return nil, nil, fmt.Errorf("%w: %s", ErrTrackLocked, tr.ID)
	}
	if at <= c.StartTime || at >= c.End() {
		return nil, nil, fmt.Errorf("%w: %f not inside (%f, %f)", ErrSplitOutOfRange, at, c.StartTime, c.End())
	}

	e.push()

	offset := at - c.StartTime

	left := *c
	left.ID = NewID()
	right := *c
	right.ID = NewID()
	right.StartTime = at

	if c.Type == ClipTypeVideo {
		// The cut point in source time advances by playback offset * speed.
		cut := c.TrimStart + offset*c.Speed
		left.TrimEnd = cut
		right.TrimStart = cut
		RecalcDuration(&left)
		RecalcDuration(&right)
	} else {
		left.Duration = offset
		right.Duration = c.Duration - offset
	}

	// Replace the original in the track order, preserving position.
	idx := indexOf(tr.ClipIDs, c.ID)
	for _, tn := range e.timeline.Transitions {
		if tn.AfterClipID == c.ID {
			tn.AfterClipID = right.ID
		}
	}
	e.removeClipLocked(c)

	e.timeline.Clips[left.ID] = &left
	e.timeline.Clips[right.ID] = &right
	if idx < 0 || idx > len(tr.ClipIDs) {
		idx = len(tr.ClipIDs)
	}
	tr.ClipIDs = append(tr.ClipIDs[:idx], append([]string{left.ID, right.ID}, tr.ClipIDs[idx:]...)...)

	return &left, &right, nil
}

// SetTrim updates a video clip's trim window and re-derives its duration.
func (e *Editor) SetTrim(id string, trimStart, trimEnd float64) error {
	c := e.timeline.Clip(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	if tr := e.timeline.Track(c.TrackID); tr != nil && tr.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, tr.ID)
	}
	updated := *c
	updated.TrimStart = trimStart
	updated.TrimEnd = trimEnd
	RecalcDuration(&updated)
	if err := updated.Validate(); err != nil {
		return err
	}
	e.push()
	*e.timeline.Clips[id] = updated
	return nil
}

// SetSpeed updates a clip's playback speed and re-derives its duration.
func (e *Editor) SetSpeed(id string, speed float64) error {
	c := e.timeline.Clip(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	if tr := e.timeline.Track(c.TrackID); tr != nil && tr.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, tr.ID)
	}
	if speed <= 0 {
		return fmt.Errorf("clip %s: speed must be positive, got %f", id, speed)
	}
	e.push()
	c = e.timeline.Clips[id]
	c.Speed = speed
	RecalcDuration(c)
	return nil
}

// SetClipVolume updates a clip's volume (1.0 = unity gain).
func (e *Editor) SetClipVolume(id string, volume float64) error {
	c := e.timeline.Clip(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	if volume < 0 {
		volume = 0
	}
	e.push()
	e.timeline.Clips[id].Volume = volume
	return nil
}

// SetMuted toggles a clip's audio contribution.
func (e *Editor) SetMuted(id string, muted bool) error {
	c := e.timeline.Clip(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	e.push()
	e.timeline.Clips[id].Muted = muted
	return nil
}

// AddAudioTrack adds an independent audio layer.
func (e *Editor) AddAudioTrack(a AudioTrack) (*AudioTrack, error) {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.Volume == 0 {
		a.Volume = 1
	}
	if a.StartTime < 0 {
		a.StartTime = 0
	}
	e.push()
	added := a
	e.timeline.AudioTracks = append(e.timeline.AudioTracks, &added)
	return &added, nil
}

// RemoveAudioTrack deletes an audio layer.
func (e *Editor) RemoveAudioTrack(id string) error {
	for i, a := range e.timeline.AudioTracks {
		if a.ID == id {
			e.push()
			e.timeline.AudioTracks = append(e.timeline.AudioTracks[:i], e.timeline.AudioTracks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAudioNotFound, id)
}

// AddMarker drops an annotation at a timeline position.
func (e *Editor) AddMarker(at float64, label, color string) (*Marker, error) {
	if at < 0 {
		at = 0
	}
	e.push()
	m := &Marker{ID: NewID(), Time: at, Label: label, Color: color}
	e.timeline.Markers = append(e.timeline.Markers, m)
	return m, nil
}

// RemoveMarker deletes an annotation.
func (e *Editor) RemoveMarker(id string) error {
	for i, m := range e.timeline.Markers {
		if m.ID == id {
			e.push()
			e.timeline.Markers = append(e.timeline.Markers[:i], e.timeline.Markers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
}

// SetTransition binds a transition to the cut after a clip, replacing any
// existing transition at that cut.
func (e *Editor) SetTransition(afterClipID, transitionType string, duration float64) (*Transition, error) {
	if e.timeline.Clip(afterClipID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrClipNotFound, afterClipID)
	}
	if duration < 0 {
		return nil, fmt.Errorf("transition after %s: negative duration", afterClipID)
	}
	e.push()
	for _, tn := range e.timeline.Transitions {
		if tn.AfterClipID == afterClipID {
			tn.Type = transitionType
			tn.Duration = duration
			return tn, nil
		}
	}
	tn := &Transition{ID: NewID(), AfterClipID: afterClipID, Type: transitionType, Duration: duration}
	e.timeline.Transitions = append(e.timeline.Transitions, tn)
	return tn, nil
}

// RemoveTransition deletes a transition by ID.
func (e *Editor) RemoveTransition(id string) error {
	for i, tn := range e.timeline.Transitions {
		if tn.ID == id {
			e.push()
			e.timeline.Transitions = append(e.timeline.Transitions[:i], e.timeline.Transitions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transition not found: %s", id)
}

// SelectClip marks a clip selected. Selection never touches history.
func (e *Editor) SelectClip(id string, additive bool) error {
	if e.timeline.Clip(id) == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	if !additive {
		e.selection.SelectedClipIDs = make(map[string]bool)
	}
	e.selection.SelectedClipIDs[id] = true
	e.selection.LastSelectedClipID = id
	return nil
}

// ClearSelection empties the selection set.
func (e *Editor) ClearSelection() {
	e.selection.SelectedClipIDs = make(map[string]bool)
	e.selection.LastSelectedClipID = ""
}

// SelectedClips returns the IDs currently selected.
func (e *Editor) SelectedClips() []string {
	ids := make([]string, 0, len(e.selection.SelectedClipIDs))
	for id := range e.selection.SelectedClipIDs {
		ids = append(ids, id)
	}
	return ids
}

// pruneSelection drops selected IDs that no longer exist after undo/redo.
func (e *Editor) pruneSelection() {
	for id := range e.selection.SelectedClipIDs {
		if e.timeline.Clip(id) == nil {
			delete(e.selection.SelectedClipIDs, id)
		}
	}
	if e.selection.LastSelectedClipID != "" && e.timeline.Clip(e.selection.LastSelectedClipID) == nil {
		e.selection.LastSelectedClipID = ""
	}
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
