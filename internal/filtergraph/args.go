package filtergraph

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeArgs renders a filter-mode plan into ffmpeg arguments. The list
// of inputs, the filter graph and the codec settings all come from the
// plan; nothing here consults the filesystem.
func EncodeArgs(p *Plan, out OutputSettings, outputPath string) ([]string, error) {
	if p == nil || p.Mode != ModeFilter {
		return nil, fmt.Errorf("encode args require a filter plan")
	}
	if p.Graph == nil || p.Graph.Len() == 0 {
		return nil, fmt.Errorf("filter plan has an empty graph")
	}

	args := []string{"-y", "-hide_banner", "-nostdin"}
	for _, in := range p.Inputs {
		switch in.Kind {
		case InputImage:
			args = append(args, "-loop", "1", "-t", fmtF(in.LoopDuration), "-i", in.Path)
		default:
			args = append(args, "-i", in.Path)
		}
	}

	args = append(args, "-filter_complex", p.Graph.String())
	args = append(args, "-map", "["+string(p.VideoOut)+"]")
	args = append(args, "-map", "["+string(p.AudioOut)+"]")

	crf := out.CRF
	if crf <= 0 {
		crf = 23
	}
	preset := out.Preset
	if preset == "" {
		preset = "medium"
	}
	args = append(args,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(crf),
		"-preset", preset,
	)

	bitrate := out.AudioBitrate
	if bitrate == "" {
		bitrate = "128k"
	}
	args = append(args,
		"-c:a", "aac",
		"-b:a", bitrate,
		"-ar", strconv.Itoa(SampleRate),
	)

	if isMP4(out.Format, outputPath) {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, outputPath), nil
}

// CopyArgs renders the stream-copy invocation. The concat list file is
// written by the caller; listPath points at it.
func CopyArgs(listPath, outputPath string) []string {
	args := []string{
		"-y", "-hide_banner", "-nostdin",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
	}
	if isMP4("", outputPath) {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, outputPath)
}

// ConcatListContent renders the ffconcat list for a stream-copy plan.
// Trim points become inpoint/outpoint directives; the demuxer honors
// them on keyframe boundaries.
func ConcatListContent(p *Plan) string {
	var sb strings.Builder
	sb.WriteString("ffconcat version 1.0\n")
	for _, in := range p.Inputs {
		sb.WriteString("file '" + escapeConcatPath(in.Path) + "'\n")
		if in.InPoint > 0 {
			sb.WriteString("inpoint " + fmtF(in.InPoint) + "\n")
		}
		if in.OutPoint > 0 {
			sb.WriteString("outpoint " + fmtF(in.OutPoint) + "\n")
		}
	}
	return sb.String()
}

// ThumbnailArgs extracts a single poster frame near the given timestamp.
func ThumbnailArgs(videoPath, outputPath string, at float64) []string {
	if at < 0 {
		at = 0
	}
	return []string{
		"-y", "-hide_banner", "-nostdin",
		"-ss", fmtF(at),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", "scale=640:-2",
		outputPath,
	}
}

func isMP4(format, path string) bool {
	if format != "" {
		return strings.EqualFold(format, "mp4")
	}
	return strings.HasSuffix(strings.ToLower(path), ".mp4")
}

func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
