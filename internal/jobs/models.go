// Package jobs defines render job records and the stores that persist
// them across restarts.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle states. A job advances strictly left to right; any stage
// failure jumps to failed.
const (
	StatusQueued      = "queued"
	StatusDownloading = "downloading"
	StatusProbing     = "probing"
	StatusEncoding    = "encoding"
	StatusUploading   = "uploading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Coarse error classes exposed alongside the captured message.
const (
	ErrTypeValidation = "ValidationError"
	ErrTypeFetch      = "FetchError"
	ErrTypeProbe      = "ProbeError"
	ErrTypeBuild      = "BuildError"
	ErrTypeEncode     = "EncodeError"
	ErrTypeTimeout    = "TimeoutError"
	ErrTypeUpload     = "UploadError"
	ErrTypeInternal   = "InternalError"
)

type Job struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	Error        string     `json:"error,omitempty"`
	ErrorType    string     `json:"errorType,omitempty"`
	Payload      string     `json:"-"`
	ArtifactPath string     `json:"-"`
	DownloadURL  string     `json:"downloadUrl,omitempty"`
	CallbackURL  string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether a status admits no further transitions.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

func NewID() string {
	return uuid.NewString()
}
