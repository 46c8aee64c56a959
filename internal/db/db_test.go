package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNew_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	tables := []string{"jobs", "settings", "_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_WALEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	err = database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	err = db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count)
	if err != nil {
		t.Fatalf("count migrations error = %v", err)
	}

	if count != 1 {
		t.Errorf("migration count = %d, want 1", count)
	}
}

func TestMarkInterruptedJobs(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, row := range []struct{ id, status string }{
		{"job-encoding", "encoding"},
		{"job-queued", "queued"},
		{"job-done", "completed"},
	} {
		_, err = db1.Conn().Exec(
			`INSERT INTO jobs (id, status, progress, created_at, updated_at) VALUES (?, ?, 50, ?, ?)`,
			row.id, row.status, now, now,
		)
		if err != nil {
			t.Fatalf("insert job error = %v", err)
		}
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	for _, id := range []string{"job-encoding", "job-queued"} {
		var status, errMsg, errType string
		err = db2.Conn().QueryRow("SELECT status, error, error_type FROM jobs WHERE id = ?", id).Scan(&status, &errMsg, &errType)
		if err != nil {
			t.Fatalf("query job error = %v", err)
		}
		if status != "failed" {
			t.Errorf("%s status = %s, want failed", id, status)
		}
		if errMsg != "interrupted by restart" {
			t.Errorf("%s error = %s, want 'interrupted by restart'", id, errMsg)
		}
		if errType != "InternalError" {
			t.Errorf("%s error_type = %s, want InternalError", id, errType)
		}
	}

	var status string
	if err := db2.Conn().QueryRow("SELECT status FROM jobs WHERE id = 'job-done'").Scan(&status); err != nil {
		t.Fatalf("query completed job error = %v", err)
	}
	if status != "completed" {
		t.Errorf("completed job status = %s, should be untouched", status)
	}
}
