// Command importer runs the one-off historical account reconciliation against
// the mirror node database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/mirror-importer/internal/config"
	"github.com/and161185/mirror-importer/internal/feed"
	"github.com/and161185/mirror-importer/internal/migrate"
	"github.com/and161185/mirror-importer/internal/repository/postgres"
	"github.com/and161185/mirror-importer/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, migrates the schema and runs the historical import once.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		// logger isn't built yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("network", cfg.Network),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseDSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	src, err := newSource(ctx, cfg)
	if err != nil {
		logger.Fatal("feed source", zap.Error(err))
	}

	svc := service.NewHistoricalImportService(
		postgres.NewEntityRepo(db),
		postgres.NewJobHistoryRepo(db),
		src,
		service.ImportOptions{
			Enabled:   cfg.ImportHistoricalAccountInfo,
			Network:   cfg.Network,
			StartDate: cfg.StartDate,
			Force:     cfg.Force,
			DryRun:    cfg.DryRun,
		},
		logger.Named("historical"),
	)

	res, err := svc.Run(ctx)
	if err != nil {
		logger.Fatal("historical account import failed",
			zap.Int64("updated", res.Updated),
			zap.Int("lines", res.Stats.Lines),
			zap.Error(err),
		)
	}
	logger.Info("done",
		zap.Bool("skipped", res.Skipped),
		zap.Int64("updated", res.Updated),
		zap.Int("lines", res.Stats.Lines),
	)
}

func newLogger(level string) *zap.Logger {
	zc := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newSource picks an S3 or local file source for the configured feed.
func newSource(ctx context.Context, cfg *config.Config) (feed.Source, error) {
	bucket, key, ok := feed.ParseS3URL(cfg.Feed)
	if !ok {
		return feed.FileSource{Path: cfg.Feed}, nil
	}
	s3src, err := feed.NewS3Source(ctx, bucket, key, feed.S3Options{
		Region:       cfg.S3.Region,
		BaseEndpoint: cfg.S3.BaseEndpoint,
		AccessKey:    cfg.S3.AccessKey,
		SecretKey:    cfg.S3.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	return s3src, nil
}
