package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/mirror-importer/internal/errs"
	"github.com/and161185/mirror-importer/internal/model"
)

// JobHistoryRepo implements JobHistoryRepository using PostgreSQL.
type JobHistoryRepo struct{ db *DB }

// NewJobHistoryRepo constructs a job history repository.
func NewJobHistoryRepo(db *DB) *JobHistoryRepo { return &JobHistoryRepo{db: db} }

// LastApplied returns the newest run of job.
func (r *JobHistoryRepo) LastApplied(ctx context.Context, job string) (*model.JobRun, error) {
	const q = `
SELECT id, job, checksum, updated, elapsed_ms, applied_at
FROM job_history WHERE job=$1 ORDER BY applied_at DESC LIMIT 1`
	var (
		run       model.JobRun
		elapsedMs int64
	)
	err := r.db.Pool.QueryRow(ctx, q, job).Scan(&run.ID, &run.Job, &run.Checksum, &run.Updated, &elapsedMs, &run.AppliedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	run.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return &run, nil
}

// Record inserts a completed run; applied_at defaults to now() in the database.
func (r *JobHistoryRepo) Record(ctx context.Context, run model.JobRun) error {
	const q = `
INSERT INTO job_history (id, job, checksum, updated, elapsed_ms)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, run.ID, run.Job, run.Checksum, run.Updated, run.Elapsed.Milliseconds())
	return err
}
