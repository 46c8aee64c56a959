package filtergraph

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	defaultTransitionStyle = "fade"
	defaultFontSize        = 48
	defaultFontColor       = "white"
)

// Build maps resolved clips plus enhancements to an encode plan. It is a
// pure function: the only inputs are the arguments, the only output is
// the plan, and no external tool is consulted.
func Build(clips []SourceClip, enh *Enhancements, out OutputSettings) (*Plan, error) {
	if len(clips) == 0 {
		return nil, buildErrorf("no clips to compose")
	}
	if out.Width <= 0 || out.Height <= 0 {
		return nil, buildErrorf("output resolution %dx%d", out.Width, out.Height)
	}
	for i := range clips {
		if clips[i].IsImage {
			if clips[i].DisplayDuration <= 0 && clips[i].Duration <= 0 {
				return nil, buildErrorf("clip %d: image with no display duration", i)
			}
		} else if clips[i].Duration <= 0 {
			return nil, buildErrorf("clip %d: zero probed duration", i)
		}
	}

	// A global speed multiplier folds into each video clip's own speed so
	// every later computation sees one adjusted value.
	scaled := applyGlobalSpeed(clips, enh)

	if !enh.Active() && !requiresFilter(scaled) {
		return buildStreamCopy(scaled), nil
	}
	return buildFilter(scaled, enh, out)
}

// requiresFilter reports whether any per-clip property rules out the
// stream-copy path: images, speed changes, mutes and volume adjustments
// all need the filter graph.
func requiresFilter(clips []SourceClip) bool {
	for i := range clips {
		c := &clips[i]
		if c.IsImage || c.Muted || c.speed() != 1 {
			return true
		}
		if c.Volume > 0 && c.Volume != 1 {
			return true
		}
	}
	return false
}

func applyGlobalSpeed(clips []SourceClip, enh *Enhancements) []SourceClip {
	scaled := make([]SourceClip, len(clips))
	copy(scaled, clips)
	if enh == nil || enh.Speed <= 0 || enh.Speed == 1 {
		return scaled
	}
	for i := range scaled {
		if scaled[i].IsImage {
			continue // image display duration is unaffected by speed
		}
		scaled[i].Speed = scaled[i].speed() * enh.Speed
	}
	return scaled
}

// buildStreamCopy emits the no-re-encode plan: sources are repackaged via
// the concat demuxer, trims become inpoint/outpoint entries.
func buildStreamCopy(clips []SourceClip) *Plan {
	p := &Plan{Mode: ModeStreamCopy}
	var total float64
	for i := range clips {
		c := &clips[i]
		start, end := c.trimWindow()
		p.Inputs = append(p.Inputs, InputSpec{
			Path:     c.Path,
			Kind:     InputVideo,
			InPoint:  start,
			OutPoint: end,
		})
		total += c.AdjustedDuration()
	}
	p.TotalDuration = total
	return p
}

func buildFilter(clips []SourceClip, enh *Enhancements, out OutputSettings) (*Plan, error) {
	if enh == nil {
		enh = &Enhancements{}
	}
	n := len(clips)

	adjusted := make([]float64, n)
	for i := range clips {
		adjusted[i] = clips[i].AdjustedDuration()
	}

	fades, err := resolveTransitions(enh.Transitions, adjusted)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for _, d := range adjusted {
		total += d
	}
	for _, f := range fades {
		total -= f.Duration
	}

	fps := out.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}

	b := &builder{g: &Graph{}, out: out, fps: fps}
	p := &Plan{Mode: ModeFilter, Graph: b.g, TotalDuration: total}

	// Clip inputs come first, in order; music and voice follow.
	videoLabels := make([]Stream, n)
	audioLabels := make([]Stream, n)
	for i := range clips {
		c := &clips[i]
		spec := InputSpec{Path: c.Path, Kind: InputVideo}
		if c.IsImage {
			spec.Kind = InputImage
			spec.LoopDuration = adjusted[i]
		}
		p.Inputs = append(p.Inputs, spec)

		videoLabels[i] = b.normalizeVideo(i, c)
		audioLabels[i] = b.normalizeAudio(i, c, adjusted[i])
	}

	vseq, aseq := b.join(videoLabels, audioLabels, adjusted, fades)

	for k, overlay := range enh.TextOverlays {
		vseq = b.drawText(vseq, overlay, k, total)
	}

	if enh.FadeIn > 0 {
		vseq = b.g.Chain(vseq, "fade", fmt.Sprintf("t=in:st=0:d=%s", fmtF(enh.FadeIn)), b.next("v"))
		aseq = b.g.Chain(aseq, "afade", fmt.Sprintf("t=in:st=0:d=%s", fmtF(enh.FadeIn)), b.next("a"))
	}
	if enh.FadeOut > 0 {
		st := total - enh.FadeOut
		if st < 0 {
			st = 0
		}
		vseq = b.g.Chain(vseq, "fade", fmt.Sprintf("t=out:st=%s:d=%s", fmtF(st), fmtF(enh.FadeOut)), b.next("v"))
		aseq = b.g.Chain(aseq, "afade", fmt.Sprintf("t=out:st=%s:d=%s", fmtF(st), fmtF(enh.FadeOut)), b.next("a"))
	}

	var musicLabel, voiceLabel Stream
	if enh.Music != nil {
		idx := len(p.Inputs)
		p.Inputs = append(p.Inputs, InputSpec{Path: enh.Music.Path, Kind: InputAudio})
		musicLabel = b.backgroundAudio(idx, enh.Music, total, "mus")
	}
	if enh.Voice != nil {
		idx := len(p.Inputs)
		p.Inputs = append(p.Inputs, InputSpec{Path: enh.Voice.Path, Kind: InputAudio})
		voiceLabel = b.backgroundAudio(idx, enh.Voice, total, "voc")
	}

	aseq = b.mixAudio(aseq, musicLabel, voiceLabel, enh)

	p.VideoOut = b.g.Chain(vseq, "null", "", "vout")
	p.AudioOut = b.g.Chain(aseq, "anull", "", "aout")

	if err := b.g.Validate(p.VideoOut, p.AudioOut); err != nil {
		return nil, fmt.Errorf("internal graph inconsistency: %w", err)
	}
	return p, nil
}

// resolveTransitions validates indices, clamps each fade to its adjacent
// clips and returns one entry per boundary (zero duration = hard cut).
func resolveTransitions(requested []Transition, adjusted []float64) ([]Transition, error) {
	n := len(adjusted)
	fades := make([]Transition, maxInt(n-1, 0))
	for i := range fades {
		fades[i].After = i
	}
	for _, t := range requested {
		if t.After < 0 || t.After > n-2 {
			return nil, buildErrorf("transition after clip %d, but only %d boundaries exist", t.After, maxInt(n-1, 0))
		}
		if t.Duration <= 0 {
			continue
		}
		left, right := adjusted[t.After], adjusted[t.After+1]
		if t.Duration > left && t.Duration > right {
			return nil, buildErrorf("transition after clip %d: duration %s exceeds both adjacent clips (%s, %s)",
				t.After, fmtF(t.Duration), fmtF(left), fmtF(right))
		}
		d := math.Min(t.Duration, math.Min(left, right))
		style := t.Type
		if style == "" || style == "crossfade" {
			style = defaultTransitionStyle
		}
		fades[t.After] = Transition{After: t.After, Type: style, Duration: d}
	}
	return fades, nil
}

type builder struct {
	g   *Graph
	out OutputSettings
	fps int
	lab int
}

func (b *builder) next(prefix string) Stream {
	b.lab++
	return Stream(prefix + strconv.Itoa(b.lab))
}

type op struct {
	filter string
	args   string
}

// chain applies ops in order from in, naming the last output final.
func (b *builder) chain(in Stream, final Stream, ops []op) Stream {
	if len(ops) == 0 {
		return b.g.Chain(in, "null", "", final)
	}
	cur := in
	for i, o := range ops {
		outLabel := final
		if i < len(ops)-1 {
			outLabel = b.next("n")
		}
		cur = b.g.Chain(cur, o.filter, o.args, outLabel)
	}
	return cur
}

// normalizeVideo emits the per-clip video conditioning chain: trim,
// scale+pad to the target frame, square pixels, uniform rate and pixel
// format, then speed retiming. Every clip leaves here interchangeable
// with every other, which is what concat and xfade both require.
func (b *builder) normalizeVideo(idx int, c *SourceClip) Stream {
	in := Stream(fmt.Sprintf("%d:v", idx))
	var ops []op

	if !c.IsImage {
		start, end := c.trimWindow()
		ops = append(ops,
			op{"trim", fmt.Sprintf("start=%s:end=%s", fmtF(start), fmtF(end))},
			op{"setpts", "PTS-STARTPTS"},
		)
	}
	ops = append(ops,
		op{"scale", fmt.Sprintf("%d:%d:force_original_aspect_ratio=decrease", b.out.Width, b.out.Height)},
		op{"pad", fmt.Sprintf("%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", b.out.Width, b.out.Height)},
		op{"setsar", "1"},
		op{"fps", strconv.Itoa(b.fps)},
		op{"format", "yuv420p"},
	)
	if !c.IsImage && c.speed() != 1 {
		// Timestamp rescale: factor is the reciprocal of playback speed.
		ops = append(ops, op{"setpts", fmt.Sprintf("PTS*%s", fmtF(1/c.speed()))})
	}

	return b.chain(in, Stream(fmt.Sprintf("v%d", idx)), ops)
}

// normalizeAudio emits the per-clip audio branch. Clips without a usable
// audio stream get synthesized silence of the clip's adjusted duration,
// so downstream joins always see one audio stream per input.
func (b *builder) normalizeAudio(idx int, c *SourceClip, adjusted float64) Stream {
	final := Stream(fmt.Sprintf("a%d", idx))

	if c.IsImage || !c.HasAudio || c.Muted {
		src := b.g.Source("anullsrc",
			fmt.Sprintf("channel_layout=stereo:sample_rate=%d", SampleRate), b.next("a"))
		return b.chain(src, final, []op{
			{"atrim", "duration=" + fmtF(adjusted)},
			{"aresample", strconv.Itoa(SampleRate)},
		})
	}

	start, end := c.trimWindow()
	ops := []op{
		{"atrim", fmt.Sprintf("start=%s:end=%s", fmtF(start), fmtF(end))},
		{"asetpts", "PTS-STARTPTS"},
	}
	for _, tempo := range tempoChain(c.speed()) {
		if tempo != 1 {
			ops = append(ops, op{"atempo", fmtF(tempo)})
		}
	}
	if c.Volume > 0 && c.Volume != 1 {
		ops = append(ops, op{"volume", fmtF(c.Volume)})
	}
	ops = append(ops, op{"aresample", strconv.Itoa(SampleRate)})

	return b.chain(Stream(fmt.Sprintf("%d:a", idx)), final, ops)
}

// tempoChain returns the atempo stages for a speed factor. atempo is only
// defined on [0.5, 2.0], so factors above 2.0 split into a 2.0 stage
// followed by the remainder.
func tempoChain(factor float64) []float64 {
	if factor <= 2.0 {
		return []float64{factor}
	}
	return []float64{2.0, factor / 2.0}
}

// join produces one video and one audio label from the per-clip streams:
// a single interleaved concat when no transitions exist, otherwise a
// pairwise chain where each faded boundary becomes xfade/acrossfade and
// each plain boundary a pairwise concat.
func (b *builder) join(video, audio []Stream, adjusted []float64, fades []Transition) (Stream, Stream) {
	n := len(video)
	if n == 1 {
		// Nothing to join; the final passthrough stages map the labels.
		return video[0], audio[0]
	}

	anyFade := false
	for _, f := range fades {
		if f.Duration > 0 {
			anyFade = true
			break
		}
	}

	if !anyFade {
		inputs := make([]Stream, 0, 2*n)
		for i := 0; i < n; i++ {
			inputs = append(inputs, video[i], audio[i])
		}
		vcat, acat := b.next("v"), b.next("a")
		b.g.Add(Node{
			Inputs:  inputs,
			Filter:  "concat",
			Args:    fmt.Sprintf("n=%d:v=1:a=1", n),
			Outputs: []Stream{vcat, acat},
		})
		return vcat, acat
	}

	curV, curA := video[0], audio[0]
	cum := adjusted[0]
	for i := 1; i < n; i++ {
		f := fades[i-1]
		if f.Duration > 0 {
			// Join offset: cumulative adjusted duration through the left
			// clip, minus the fade. Raw probed durations are wrong here.
			offset := cum - f.Duration
			nextV, nextA := b.next("vx"), b.next("ax")
			b.g.Add(Node{
				Inputs: []Stream{curV, video[i]},
				Filter: "xfade",
				Args: fmt.Sprintf("transition=%s:duration=%s:offset=%s",
					f.Type, fmtF(f.Duration), fmtF(offset)),
				Outputs: []Stream{nextV},
			})
			b.g.Add(Node{
				Inputs:  []Stream{curA, audio[i]},
				Filter:  "acrossfade",
				Args:    "d=" + fmtF(f.Duration),
				Outputs: []Stream{nextA},
			})
			curV, curA = nextV, nextA
		} else {
			nextV, nextA := b.next("v"), b.next("a")
			b.g.Add(Node{
				Inputs:  []Stream{curV, video[i]},
				Filter:  "concat",
				Args:    "n=2:v=1:a=0",
				Outputs: []Stream{nextV},
			})
			b.g.Add(Node{
				Inputs:  []Stream{curA, audio[i]},
				Filter:  "concat",
				Args:    "n=2:v=0:a=1",
				Outputs: []Stream{nextA},
			})
			curV, curA = nextV, nextA
		}
		cum += adjusted[i]
	}
	return curV, curA
}

// drawText chains one overlay onto the current video label. Timing is an
// absolute enable window over the output; an overlay with End 0 stays up
// to the end.
func (b *builder) drawText(in Stream, t TextOverlay, idx int, total float64) Stream {
	size := t.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	color := t.FontColor
	if color == "" {
		color = defaultFontColor
	}

	var x, y string
	switch {
	case t.XPercent != nil || t.YPercent != nil:
		xp, yp := 50.0, 50.0
		if t.XPercent != nil {
			xp = *t.XPercent
		}
		if t.YPercent != nil {
			yp = *t.YPercent
		}
		x = fmt.Sprintf("(w-text_w)*%s", fmtF(xp/100))
		y = fmt.Sprintf("(h-text_h)*%s", fmtF(yp/100))
	case t.Anchor == "top":
		x, y = "(w-text_w)/2", "h/10"
	case t.Anchor == "bottom":
		x, y = "(w-text_w)/2", "h-text_h-h/10"
	default: // center
		x, y = "(w-text_w)/2", "(h-text_h)/2"
	}

	start := t.Start
	if start < 0 {
		start = 0
	}
	end := t.End
	if end <= 0 || end > total {
		end = total
	}

	args := fmt.Sprintf("text='%s':fontsize=%d:fontcolor=%s:x=%s:y=%s:enable='between(t,%s,%s)'",
		escapeText(t.Text), size, color, x, y, fmtF(start), fmtF(end))
	return b.g.Chain(in, "drawtext", args, Stream("txt"+strconv.Itoa(idx)))
}

// backgroundAudio conditions a music or voice input: volume first, then
// fade envelopes (fade-out anchored at total-fadeOut), then resample to
// the shared rate.
func (b *builder) backgroundAudio(inputIdx int, mix *AudioMix, total float64, final string) Stream {
	var ops []op
	if mix.Volume > 0 && mix.Volume != 1 {
		ops = append(ops, op{"volume", fmtF(mix.Volume)})
	}
	if mix.FadeIn > 0 {
		ops = append(ops, op{"afade", fmt.Sprintf("t=in:st=0:d=%s", fmtF(mix.FadeIn))})
	}
	if mix.FadeOut > 0 {
		st := total - mix.FadeOut
		if st < 0 {
			st = 0
		}
		ops = append(ops, op{"afade", fmt.Sprintf("t=out:st=%s:d=%s", fmtF(st), fmtF(mix.FadeOut))})
	}
	ops = append(ops, op{"aresample", strconv.Itoa(SampleRate)})
	return b.chain(Stream(fmt.Sprintf("%d:a", inputIdx)), Stream(final), ops)
}

// mixAudio folds the background layers into the clip-derived audio.
// Loudness normalization applies to the mixed result, and only when both
// music and voice are present; normalizing each input separately defeats
// the point and re-introduces clipping.
func (b *builder) mixAudio(base, music, voice Stream, enh *Enhancements) Stream {
	inputs := []Stream{base}
	if music != "" {
		inputs = append(inputs, music)
	}
	if voice != "" {
		inputs = append(inputs, voice)
	}
	if len(inputs) == 1 {
		return base
	}

	duration := "first"
	if (enh.Music != nil && enh.Music.ExtendPastVideo) || (enh.Voice != nil && enh.Voice.ExtendPastVideo) {
		duration = "longest"
	}

	mixed := b.next("am")
	b.g.Add(Node{
		Inputs:  inputs,
		Filter:  "amix",
		Args:    fmt.Sprintf("inputs=%d:duration=%s:dropout_transition=2:normalize=0", len(inputs), duration),
		Outputs: []Stream{mixed},
	})

	if music != "" && voice != "" {
		return b.g.Chain(mixed, "loudnorm", "I=-16:TP=-1.5:LRA=11", b.next("am"))
	}
	return mixed
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`:`, `\:`,
	`%`, `\\%`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// fmtF renders a float without trailing zeros, rounded to microseconds.
func fmtF(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e6)/1e6, 'f', -1, 64)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
