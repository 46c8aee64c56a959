package jobs

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps jobs in a map. Records are copied on the way in and
// out, so a reader can never observe a half-applied update.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	order    []string
	settings map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]*Job),
		settings: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	cp := *j
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}
	s.jobs[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*Job, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		if j, ok := s.jobs[s.order[i]]; ok {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id, status string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Status = status
	j.Progress = progress
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SetProgress(_ context.Context, id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Progress = progress
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) MarkCompleted(_ context.Context, id, artifactPath, downloadURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.Progress = 100
	j.ArtifactPath = artifactPath
	j.DownloadURL = downloadURL
	j.Error = ""
	j.ErrorType = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, message, errType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.Error = message
	j.ErrorType = errType
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

func (s *MemoryStore) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[key], nil
}

func (s *MemoryStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}
