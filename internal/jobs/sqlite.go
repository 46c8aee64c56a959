package jobs

import (
	"context"
	"database/sql"
	"time"
)

// SQLiteStore persists jobs through the shared database handle.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Create(ctx context.Context, j *Job) error {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, progress, error, error_type, payload, artifact_path, download_url, callback_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Status, j.Progress, nullString(j.Error), nullString(j.ErrorType),
		nullString(j.Payload), nullString(j.ArtifactPath), nullString(j.DownloadURL), nullString(j.CallbackURL),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

const jobColumns = `id, status, progress, error, error_type, payload, artifact_path, download_url, callback_url, created_at, updated_at, completed_at`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var errMsg, errType, payload, artifact, download, callback, completedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Status, &j.Progress, &errMsg, &errType, &payload,
		&artifact, &download, &callback, &createdAt, &updatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	j.Error = errMsg.String
	j.ErrorType = errType.String
	j.Payload = payload.String
	j.ArtifactPath = artifact.String
	j.DownloadURL = download.String
	j.CallbackURL = callback.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			j.CompletedAt = &t
		}
	}
	return &j, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id, status string, progress int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, progress = ?, updated_at = ? WHERE id = ?
	`, status, progress, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *SQLiteStore) SetProgress(ctx context.Context, id string, progress int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *SQLiteStore) MarkCompleted(ctx context.Context, id, artifactPath, downloadURL string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, progress = 100, artifact_path = ?, download_url = ?, error = NULL, error_type = NULL, updated_at = ?, completed_at = ?
		WHERE id = ?
	`, StatusCompleted, nullString(artifactPath), nullString(downloadURL), now, now, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id, message, errType string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, error = ?, error_type = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`, StatusFailed, nullString(message), nullString(errType), now, now, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
