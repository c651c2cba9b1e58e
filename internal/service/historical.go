package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/mirror-importer/internal/errs"
	"github.com/and161185/mirror-importer/internal/feed"
	"github.com/and161185/mirror-importer/internal/model"
	"github.com/and161185/mirror-importer/internal/repository"
)

const (
	// HistoricalAccountInfoJob names the job in job_history.
	HistoricalAccountInfoJob = "historical_account_info"
	// HistoricalAccountInfoChecksum changes whenever the job must be rerun on already imported databases.
	HistoricalAccountInfoChecksum = 2

	// NetworkMainnet is the only network the archive describes.
	NetworkMainnet = "mainnet"
)

// ExportDate is when the archival account snapshot was taken.
var ExportDate = time.Date(2019, time.September, 14, 0, 0, 10, 0, time.UTC)

// ImportOptions controls whether and how the historical import runs.
type ImportOptions struct {
	Enabled   bool
	Network   string
	StartDate *time.Time // nil means now
	Force     bool       // rerun even if this checksum was already applied
	DryRun    bool       // compute merges without saving
}

// ImportResult summarizes one Run.
type ImportResult struct {
	Skipped bool
	Reason  string
	Updated int64
	Stats   feed.Stats
	Elapsed time.Duration
}

// HistoricalImporter merges the archival account snapshot into the entity store.
type HistoricalImporter interface {
	// Run applies the gates and, if they pass, streams the whole feed once.
	Run(ctx context.Context) (ImportResult, error)
	// Process merges a single archival record and saves the row if it changed.
	Process(ctx context.Context, info model.AccountInfo) (bool, error)
}

type HistoricalImportService struct {
	entities repository.EntityRepository
	history  repository.JobHistoryRepository
	source   feed.Source
	opts     ImportOptions
	log      *zap.Logger
	now      func() time.Time
}

// NewHistoricalImportService constructs the import job. history may be nil, in which
// case runs are neither recorded nor deduplicated.
func NewHistoricalImportService(
	entities repository.EntityRepository,
	history repository.JobHistoryRepository,
	source feed.Source,
	opts ImportOptions,
	log *zap.Logger,
) *HistoricalImportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoricalImportService{
		entities: entities,
		history:  history,
		source:   source,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Run checks the preconditions and then imports the feed line by line.
// Malformed lines are logged and skipped; feed and store errors abort the run.
func (s *HistoricalImportService) Run(ctx context.Context) (ImportResult, error) {
	reason, err := s.skipReason(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	if reason != "" {
		s.log.Info("Skipping historical account import", zap.String("reason", reason))
		return ImportResult{Skipped: true, Reason: reason}, nil
	}

	s.log.Info("Importing historical account information",
		zap.String("feed", s.source.Name()),
		zap.Bool("dryRun", s.opts.DryRun),
	)
	start := s.now()

	var updated int64
	stats, err := feed.Scan(ctx, s.source, func(l feed.Line) error {
		if l.Err != nil {
			s.log.Error("Unable to parse AccountInfo from line",
				zap.Int("line", l.Number),
				zap.String("content", l.Text),
				zap.Error(l.Err),
			)
			return nil
		}
		changed, err := s.Process(ctx, l.Record)
		if err != nil {
			return err
		}
		if changed {
			updated++
		}
		return nil
	})
	if err != nil {
		return ImportResult{Stats: stats, Updated: updated}, fmt.Errorf("historical account import: %w", err)
	}

	elapsed := s.now().Sub(start)
	res := ImportResult{Updated: updated, Stats: stats, Elapsed: elapsed}
	if !s.opts.DryRun && s.history != nil {
		if err := s.record(ctx, res); err != nil {
			return res, err
		}
	}

	s.log.Info("Successfully updated accounts",
		zap.Int64("count", updated),
		zap.Duration("elapsed", elapsed),
		zap.Int("malformed", stats.Malformed),
	)
	return res, nil
}

// Process loads the row for info's account (or builds a new one), merges the record
// into it and saves it when anything changed.
func (s *HistoricalImportService) Process(ctx context.Context, info model.AccountInfo) (bool, error) {
	id := info.AccountID
	entity, err := s.entities.FindByID(ctx, id)
	existed := true
	switch {
	case errors.Is(err, errs.ErrNotFound):
		existed = false
		entity = id.ToEntity()
	case err != nil:
		return false, fmt.Errorf("find entity %s: %w", id, err)
	}

	switch Merge(entity, existed, info) {
	case SkippedNewer:
		s.log.Debug("Skipping entity that was created after the reset", zap.Stringer("entity", id))
		return false, nil
	case Unchanged:
		return false, nil
	}

	state := "existing"
	if !existed {
		state = "new"
	}
	if s.opts.DryRun {
		s.log.Info("Would save entity", zap.String("state", state), zap.Stringer("entity", id))
		return true, nil
	}
	s.log.Info("Saving entity", zap.String("state", state), zap.Stringer("entity", id))
	if err := s.entities.Save(ctx, entity); err != nil {
		return false, fmt.Errorf("save entity %s: %w", id, err)
	}
	return true, nil
}

// skipReason returns a non-empty reason when the import must not run.
func (s *HistoricalImportService) skipReason(ctx context.Context) (string, error) {
	if !s.opts.Enabled {
		return "importing historical account information is disabled", nil
	}
	if s.opts.Network != NetworkMainnet {
		return fmt.Sprintf("it only applies to %s, not %s", NetworkMainnet, s.opts.Network), nil
	}

	var startDate time.Time
	if s.opts.StartDate != nil {
		startDate = *s.opts.StartDate
	} else {
		startDate = s.now()
	}
	if startDate.After(ExportDate) {
		return fmt.Sprintf("start date %s is after the export date %s",
			startDate.UTC().Format(time.RFC3339Nano), ExportDate.Format(time.RFC3339)), nil
	}

	if s.history == nil || s.opts.Force {
		return "", nil
	}
	last, err := s.history.LastApplied(ctx, HistoricalAccountInfoJob)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("load job history: %w", err)
	}
	if last.Checksum == HistoricalAccountInfoChecksum {
		return fmt.Sprintf("checksum %d already applied at %s", last.Checksum, last.AppliedAt.UTC().Format(time.RFC3339)), nil
	}
	return "", nil
}

func (s *HistoricalImportService) record(ctx context.Context, res ImportResult) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	run := model.JobRun{
		ID:       id,
		Job:      HistoricalAccountInfoJob,
		Checksum: HistoricalAccountInfoChecksum,
		Updated:  res.Updated,
		Elapsed:  res.Elapsed,
	}
	if err := s.history.Record(ctx, run); err != nil {
		return fmt.Errorf("record job history: %w", err)
	}
	return nil
}
