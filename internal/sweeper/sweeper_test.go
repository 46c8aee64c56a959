package sweeper

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func backdate(t *testing.T, path string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes(%s): %v", path, err)
	}
}

func TestSweepRemovesExpiredArtifacts(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "artifacts")
	if err := os.MkdirAll(artifacts, 0o755); err != nil {
		t.Fatal(err)
	}

	old := filepath.Join(artifacts, "old.mp4")
	fresh := filepath.Join(artifacts, "fresh.mp4")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	backdate(t, old, 100*time.Hour)

	s := New(Config{
		ArtifactsDir:      artifacts,
		ArtifactRetention: 72 * time.Hour,
		Logger:            discardLogger(),
	})

	if removed := s.Sweep(time.Now()); removed != 1 {
		t.Fatalf("Sweep() removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired artifact survived the sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh artifact was removed: %v", err)
	}
}

func TestSweepRemovesOrphanedScratchDirs(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "scratch")
	orphan := filepath.Join(scratch, "job-123")
	if err := os.MkdirAll(orphan, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(orphan, "clip.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	backdate(t, orphan, 48*time.Hour)

	live := filepath.Join(scratch, "job-456")
	if err := os.MkdirAll(live, 0o755); err != nil {
		t.Fatal(err)
	}

	s := New(Config{ScratchDir: scratch, Logger: discardLogger()})
	if removed := s.Sweep(time.Now()); removed != 1 {
		t.Fatalf("Sweep() removed = %d, want 1", removed)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphaned scratch dir survived")
	}
	if _, err := os.Stat(live); err != nil {
		t.Errorf("in-flight scratch dir was removed: %v", err)
	}
}

func TestSweepToleratesMissingDirs(t *testing.T) {
	s := New(Config{
		ScratchDir:        "/nonexistent/scratch",
		ArtifactsDir:      "/nonexistent/artifacts",
		ArtifactRetention: time.Hour,
		Logger:            discardLogger(),
	})
	if removed := s.Sweep(time.Now()); removed != 0 {
		t.Errorf("Sweep() removed = %d, want 0", removed)
	}
}
