package repository

import (
	"context"

	"github.com/and161185/mirror-importer/internal/model"
)

// JobHistoryRepository records completed runs of one-time jobs.
type JobHistoryRepository interface {
	// LastApplied returns the most recent run of job; errs.ErrNotFound if it never ran.
	LastApplied(ctx context.Context, job string) (*model.JobRun, error)
	// Record appends a completed run.
	Record(ctx context.Context, run model.JobRun) error
}
