package jobs

import (
	"context"
	"errors"
)

// ErrNotFound is returned for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// Store persists job records plus a small settings KV used for instance
// identity. Implementations must keep each record consistent under
// concurrent readers: a Get racing an update returns either the old or
// the new record, never a mix.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, limit int) ([]*Job, error)
	SetStatus(ctx context.Context, id, status string, progress int) error
	SetProgress(ctx context.Context, id string, progress int) error
	MarkCompleted(ctx context.Context, id, artifactPath, downloadURL string) error
	MarkFailed(ctx context.Context, id, message, errType string) error

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}
