package timeline

// EffectiveDuration returns the clip's playback length after trim and
// speed. Video: (trimEnd - trimStart) / speed. Images play at their fixed
// display duration and ignore speed.
func EffectiveDuration(c *Clip) float64 {
	if c.Type == ClipTypeImage {
		return c.Duration
	}
	speed := c.Speed
	if speed <= 0 {
		speed = 1
	}
	return (c.TrimEnd - c.TrimStart) / speed
}

// RecalcDuration re-derives a clip's Duration field from its trim and
// speed state. Every mutation that touches trim or speed calls this, so
// the duration invariant holds without hidden caches.
func RecalcDuration(c *Clip) {
	if c.Type == ClipTypeImage {
		return
	}
	c.Duration = EffectiveDuration(c)
}

// SequenceStarts returns the running start offset for each clip when the
// given clips are placed back to back, plus the total length of the
// sequence as the final element's end.
func SequenceStarts(clips []*Clip) []float64 {
	starts := make([]float64, len(clips))
	var cursor float64
	for i, c := range clips {
		starts[i] = cursor
		cursor += EffectiveDuration(c)
	}
	return starts
}

// Duration returns the global timeline length: the maximum clip or audio
// track end across all tracks, clamped to MinTimelineDuration. An empty
// timeline still reports the floor.
func (t *Timeline) Duration() float64 {
	max := 0.0
	for _, tr := range t.Tracks {
		for _, id := range tr.ClipIDs {
			if c, ok := t.Clips[id]; ok {
				if end := c.End(); end > max {
					max = end
				}
			}
		}
	}
	for _, a := range t.AudioTracks {
		if end := a.End(); end > max {
			max = end
		}
	}
	if max < MinTimelineDuration {
		return MinTimelineDuration
	}
	return max
}
