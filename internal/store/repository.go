package store

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	FinishRun(ctx context.Context, id, status, errorMsg string) error
	UpdateRunArtifact(ctx context.Context, id, artifactPath string, durationMs int64) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, type, status, video_name, segment_count, duration_ms, artifact_path, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Type, run.Status, nullString(run.VideoName), run.SegmentCount, run.DurationMs,
		nullString(run.ArtifactPath), nullString(run.Error),
		run.CreatedAt.Format(time.RFC3339), run.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, video_name, segment_count, duration_ms, artifact_path, error, created_at, updated_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, video_name, segment_count, duration_ms, artifact_path, error, created_at, updated_at
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) FinishRun(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateRunArtifact(ctx context.Context, id, artifactPath string, durationMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET artifact_path = ?, duration_ms = ?, updated_at = ? WHERE id = ?
	`, nullString(artifactPath), durationMs, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row *sql.Row) (*Run, error) {
	run, err := scanRunFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func scanRunRows(rows *sql.Rows) (*Run, error) {
	return scanRunFrom(rows)
}

func scanRunFrom(s rowScanner) (*Run, error) {
	var run Run
	var videoName, artifactPath, errMsg sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&run.ID, &run.Type, &run.Status, &videoName, &run.SegmentCount,
		&run.DurationMs, &artifactPath, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	run.VideoName = videoName.String
	run.ArtifactPath = artifactPath.String
	run.Error = errMsg.String
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
