package timeline

// History is a bounded undo/redo ring of deep timeline snapshots.
// Snapshots exclude selection and playback state; Editor pushes one
// before every mutating operation.
type History struct {
	depth int
	undo  []*Timeline
	redo  []*Timeline
}

// NewHistory creates a history ring holding at most depth snapshots.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &History{depth: depth}
}

// Push records a pre-mutation snapshot and invalidates the redo stack.
// When the ring is full the oldest snapshot is dropped.
func (h *History) Push(snap *Timeline) {
	if len(h.undo) >= h.depth {
		h.undo = h.undo[1:]
	}
	h.undo = append(h.undo, snap)
	h.redo = h.redo[:0]
}

// Undo exchanges the current state for the most recent snapshot.
// The caller passes the live state (already cloned); it is parked on the
// redo stack.
func (h *History) Undo(current *Timeline) (*Timeline, error) {
	if len(h.undo) == 0 {
		return nil, ErrNothingToUndo
	}
	snap := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return snap, nil
}

// Redo re-applies the most recently undone state.
func (h *History) Redo(current *Timeline) (*Timeline, error) {
	if len(h.redo) == 0 {
		return nil, ErrNothingToRedo
	}
	snap := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)
	return snap, nil
}

// CanUndo reports whether an undo snapshot is available.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether a redo snapshot is available.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the number of undo snapshots currently held.
func (h *History) Len() int { return len(h.undo) }
