package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpsertJob persists a job snapshot. Called by the job runner on every
// status transition so the jobs table survives restarts.
func (d *Database) UpsertJob(ctx context.Context, j *JobRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_job", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var completedAt any
	if !j.CompletedAt.IsZero() {
		completedAt = j.CompletedAt.Unix()
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, status, error, created_at, completed_at,
			processed, indexed, duplicates, failed)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			completed_at = excluded.completed_at,
			processed = excluded.processed,
			indexed = excluded.indexed,
			duplicates = excluded.duplicates,
			failed = excluded.failed`,
		j.ID, j.Kind, j.Status, j.Error, j.CreatedAt.Unix(), completedAt,
		j.Processed, j.Indexed, j.Duplicates, j.Failed,
	)
	return err
}

// GetJob returns a persisted job snapshot by id, or ErrNoRow.
func (d *Database) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_job", start, err) }()

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var (
		j           JobRecord
		jobErr      sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	err = d.db.QueryRowContext(ctx, `
		SELECT id, kind, status, error, created_at, completed_at,
			processed, indexed, duplicates, failed
		FROM jobs WHERE id = ?`, id).Scan(
		&j.ID, &j.Kind, &j.Status, &jobErr, &createdAt, &completedAt,
		&j.Processed, &j.Indexed, &j.Duplicates, &j.Failed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNoRow
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	j.Error = jobErr.String
	j.CreatedAt = time.Unix(createdAt, 0)
	if completedAt.Valid {
		j.CompletedAt = time.Unix(completedAt.Int64, 0)
	}
	return &j, nil
}
