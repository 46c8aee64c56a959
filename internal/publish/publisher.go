// Package publish delivers finished artifacts: object-storage upload,
// signed download URLs, and completion callbacks.
package publish

import (
	"context"
	"log/slog"
	"sync"
)

// Publisher uploads a local file under a storage key and returns the
// URL a client should use to download it.
type Publisher interface {
	Publish(ctx context.Context, key, localPath string) (string, error)
}

// Stub records publish calls without talking to any storage. Used in
// tests and when the daemon runs without storage configured.
type Stub struct {
	logger *slog.Logger

	mu        sync.Mutex
	published map[string]string
	URL       string
	Err       error
}

func NewStub(logger *slog.Logger) *Stub {
	return &Stub{logger: logger, published: make(map[string]string)}
}

func (s *Stub) Publish(_ context.Context, key, localPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.published[key] = localPath
	if s.logger != nil {
		s.logger.Info("publish stub: upload requested", "key", key, "path", localPath)
	}
	if s.URL != "" {
		return s.URL, nil
	}
	return "stub://" + key, nil
}

// Published returns the recorded path for a key.
func (s *Stub) Published(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.published[key]
	return p, ok
}
