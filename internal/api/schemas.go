package api

import (
	"time"

	"github.com/clipforge/clipforge-render/internal/jobs"
)

type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	UptimeS      int64  `json:"uptime_s"`
	InstanceID   string `json:"instance_id"`
	Paused       bool   `json:"paused"`
	QueueDepth   int64  `json:"queue_depth"`
	ActiveJobs   int64  `json:"active_jobs"`
	EncoderReady *bool  `json:"encoder_ready,omitempty"`
}

type RenderResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// JobResponse is the poll view of a job: a coarse status for the
// caller's state machine, plus the internal stage and progress for
// display.
type JobResponse struct {
	JobID       string `json:"jobId"`
	Status      string `json:"status"`
	Stage       string `json:"stage"`
	Progress    int    `json:"progress"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorType   string `json:"errorType,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	CompletedAt string `json:"completedAt,omitempty"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JobToResponse(j *jobs.Job) JobResponse {
	resp := JobResponse{
		JobID:       j.ID,
		Status:      coarseStatus(j.Status),
		Stage:       j.Status,
		Progress:    j.Progress,
		DownloadURL: j.DownloadURL,
		Error:       j.Error,
		ErrorType:   j.ErrorType,
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
	}
	if j.CompletedAt != nil {
		resp.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// coarseStatus folds the stage ladder into the three states callers
// branch on.
func coarseStatus(status string) string {
	switch status {
	case jobs.StatusCompleted, jobs.StatusFailed:
		return status
	default:
		return "processing"
	}
}
