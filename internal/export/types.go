// Package export renders a clip sequence as a CMX 3600 EDL so a cut
// assembled here can be picked up in a desktop NLE.
package export

// Request is the body of an EDL export call. Times are seconds in
// source-clip time, the same units the render timeline carries.
type Request struct {
	ProjectName string      `json:"projectName"`
	Format      string      `json:"format"`
	FrameRate   float64     `json:"frameRate"`
	Clips       []ClipInput `json:"clips"`
}

type ClipInput struct {
	Name      string  `json:"name"`
	Source    string  `json:"source"`
	TrimStart float64 `json:"trimStart"`
	TrimEnd   float64 `json:"trimEnd"`
	Speed     float64 `json:"speed,omitempty"`
}

// ResolvedClip is a validated event ready for timecode conversion.
type ResolvedClip struct {
	Name      string
	MediaPath string
	SourceIn  float64 // seconds
	SourceOut float64 // seconds
	Speed     float64 // 1 = native
}

type Response struct {
	Format    string `json:"format"`
	FileName  string `json:"fileName"`
	Content   string `json:"content"`
	ClipCount int    `json:"clipCount"`
}
