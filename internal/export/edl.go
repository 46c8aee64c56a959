package export

import (
	"fmt"
	"math"
	"strings"
)

// GenerateEDL writes the clip sequence as a CMX 3600 edit decision
// list. Source in/out come from each clip's trim window; record times
// advance by the speed-adjusted duration, matching what the render
// pipeline would actually produce. Speed changes are noted as M2
// motion memos, the EDL convention desktop NLEs understand.
func GenerateEDL(clips []ResolvedClip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffset := 0.0
	for i, clip := range clips {
		speed := clip.Speed
		if speed <= 0 {
			speed = 1
		}
		recordDuration := (clip.SourceOut - clip.SourceIn) / speed

		srcIn := secondsToTimecode(clip.SourceIn, fps)
		srcOut := secondsToTimecode(clip.SourceOut, fps)
		recIn := secondsToTimecode(recordOffset, fps)
		recOut := secondsToTimecode(recordOffset+recordDuration, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
		)
		if speed != 1 {
			lines = append(lines,
				fmt.Sprintf("M2   AX %21.1f %s", frameRate*speed, srcIn),
			)
		}
		lines = append(lines,
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.Name),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)

		recordOffset += recordDuration
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToTimecode(seconds float64, fps int) string {
	totalFrames := int(math.Round(seconds * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}
