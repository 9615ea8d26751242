package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/memory"
	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/otel"
	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/prometheus"
	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/redis"
	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/storage"
	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/turso"
	"github.com/emiliopalmerini/lostfound-admin/internal/config"
	"github.com/emiliopalmerini/lostfound-admin/internal/migrate"
	"github.com/emiliopalmerini/lostfound-admin/internal/ports"
	"github.com/emiliopalmerini/lostfound-admin/internal/retry"
	"github.com/emiliopalmerini/lostfound-admin/internal/service"
)

// AppContext holds all shared dependencies for CLI commands.
type AppContext struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *sql.DB
	ExperimentRepo ports.ExperimentRepository
	CounterRepo    ports.ParticipationRepository
	Archive        ports.ResultsArchive
	Metrics        *prometheus.Metrics
	Exporter       ports.MetricsExporter
	Service        *service.Service

	closers []func() error
}

// NewAppContext creates an AppContext with all dependencies initialized.
func NewAppContext(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*AppContext, error) {
	app := &AppContext{Config: cfg, Logger: logger}
	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *AppContext) init(ctx context.Context) error {
	cfg, logger := app.Config, app.Logger

	if cfg.Store == config.StoreSQLite {
		db, err := turso.Open(ctx, cfg.DatabaseURL, cfg.AuthToken)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = db
		app.closers = append(app.closers, db.Close)

		migrator := newMigrator(db, logger)
		if _, err := retry.Do(ctx, cfg.RetryPolicy(), logger, "run migrations", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, migrator.Up(ctx)
		}); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	switch cfg.Store {
	case config.StoreSQLite:
		app.ExperimentRepo = turso.NewExperimentRepository(app.DB)
	case config.StoreMemory:
		app.ExperimentRepo = memory.NewExperimentRepository()
	}

	switch cfg.CounterStore {
	case config.StoreSQLite:
		app.CounterRepo = turso.NewParticipationRepository(app.DB)
	case config.StoreMemory:
		app.CounterRepo = memory.NewParticipationRepository()
	case config.StoreRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		repo, err := redis.NewParticipationRepository(rdb, cfg.Redis.Namespace)
		if err != nil {
			_ = rdb.Close()
			return err
		}
		app.closers = append(app.closers, repo.Close)
		if err := repo.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.CounterRepo = repo
	}

	archive, err := storage.NewResultsArchive(cfg.ArchiveDir)
	if err != nil {
		return fmt.Errorf("failed to initialize results archive: %w", err)
	}
	app.Archive = archive

	app.Metrics = prometheus.New()
	exporters := []ports.MetricsExporter{app.Metrics}
	if cfg.OTEL.Enabled {
		exp, err := otel.NewExporter(ctx, otel.Config{
			Endpoint: cfg.OTEL.Endpoint,
			Enabled:  cfg.OTEL.Enabled,
			Insecure: cfg.OTEL.Insecure,
		})
		if err != nil {
			logger.Warn("OTEL exporter disabled", slog.String("error", err.Error()))
		} else {
			exporters = append(exporters, exp)
		}
	}
	app.Exporter = service.FanOut(exporters...)

	app.Service = service.New(app.ExperimentRepo, app.CounterRepo,
		service.WithLogger(logger),
		service.WithMetrics(app.Exporter),
		service.WithArchive(app.Archive),
		service.WithRetryPolicy(cfg.RetryPolicy()),
	)
	return nil
}

// Close flushes metrics and releases all resources held by the AppContext.
func (app *AppContext) Close() error {
	var errs []error
	if app.Exporter != nil {
		if err := app.Exporter.Close(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newMigrator(db *sql.DB, logger *slog.Logger) *migrate.Migrator {
	return migrate.New(db,
		migrate.WithLogger(logger),
		migrate.WithErrorClassifier(turso.Classify))
}

// withApp builds the AppContext for a single command run.
func withApp(ctx context.Context, fn func(app *AppContext) error) error {
	app, err := NewAppContext(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return fn(app)
}
