// Package service is the admin-facing facade. It composes the lifecycle
// controller, results aggregator and statistics engine, applies the retry
// policy around store calls, and reports metrics.
package service

import (
	"context"
	"log/slog"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/lifecycle"
	"github.com/emiliopalmerini/lostfound-admin/internal/ports"
	"github.com/emiliopalmerini/lostfound-admin/internal/results"
	"github.com/emiliopalmerini/lostfound-admin/internal/retry"
	"github.com/emiliopalmerini/lostfound-admin/internal/stats"
)

type Service struct {
	experiments ports.ExperimentRepository
	controller  *lifecycle.Controller
	aggregator  *results.Aggregator
	engine      *stats.Engine
	metrics     ports.MetricsExporter
	archive     ports.ResultsArchive
	policy      retry.Policy
	logger      *slog.Logger

	controllerOpts []lifecycle.Option
}

type Option func(*Service)

func WithMetrics(m ports.MetricsExporter) Option {
	return func(s *Service) { s.metrics = m }
}

// WithArchive stores the final summary whenever an experiment completes.
func WithArchive(a ports.ResultsArchive) Option {
	return func(s *Service) { s.archive = a }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithControllerOptions forwards options such as a fixed clock to the
// lifecycle controller.
func WithControllerOptions(opts ...lifecycle.Option) Option {
	return func(s *Service) { s.controllerOpts = append(s.controllerOpts, opts...) }
}

// New wires the components over the given stores.
func New(er ports.ExperimentRepository, pr ports.ParticipationRepository, opts ...Option) *Service {
	s := &Service{
		experiments: er,
		policy:      retry.DefaultPolicy(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = FanOut()
	}

	controllerOpts := append([]lifecycle.Option{
		lifecycle.WithLogger(s.logger),
		lifecycle.WithTransitionHook(s.afterTransition),
	}, s.controllerOpts...)
	s.controller = lifecycle.NewController(er, pr, controllerOpts...)
	s.aggregator = results.NewAggregator(er, pr, s.logger)
	s.engine = stats.NewEngine(er, s.aggregator)
	return s
}

// CreateExperiment validates and stores a new draft experiment.
func (s *Service) CreateExperiment(ctx context.Context, draft domain.ExperimentDraft) (*domain.Experiment, error) {
	return retry.Do(ctx, s.policy, s.logger, "create experiment", func(ctx context.Context) (*domain.Experiment, error) {
		return s.controller.Create(ctx, draft)
	})
}

func (s *Service) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	return retry.Do(ctx, s.policy, s.logger, "get experiment", func(ctx context.Context) (*domain.Experiment, error) {
		return s.controller.Get(ctx, id)
	})
}

func (s *Service) ListExperiments(ctx context.Context) ([]*domain.Experiment, error) {
	return retry.Do(ctx, s.policy, s.logger, "list experiments", func(ctx context.Context) ([]*domain.Experiment, error) {
		return s.controller.List(ctx)
	})
}

// ApplyAction runs an admin action (start, pause, resume, complete).
func (s *Service) ApplyAction(ctx context.Context, id string, action domain.Action) (*domain.Experiment, error) {
	return retry.Do(ctx, s.policy, s.logger, "apply action", func(ctx context.Context) (*domain.Experiment, error) {
		return s.controller.Apply(ctx, id, action)
	})
}

// SetStatus moves the experiment to status, as the status update endpoint does.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.Status) (*domain.Experiment, error) {
	return retry.Do(ctx, s.policy, s.logger, "set status", func(ctx context.Context) (*domain.Experiment, error) {
		return s.controller.TransitionTo(ctx, id, status)
	})
}

// afterTransition runs once per committed status change.
func (s *Service) afterTransition(ctx context.Context, exp *domain.Experiment, from domain.Status) {
	s.metrics.RecordTransition(ctx, exp.ID, from, exp.Status)
	if exp.Status == domain.StatusCompleted {
		s.archiveResults(ctx, exp.ID)
	}
}

// archiveResults is best effort; the live summary stays available either way.
func (s *Service) archiveResults(ctx context.Context, id string) {
	if s.archive == nil {
		return
	}
	summary, err := s.Results(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to compute final results", slog.String("experiment_id", id), slog.String("error", err.Error()))
		return
	}
	path, err := s.archive.Store(ctx, summary)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to archive final results", slog.String("experiment_id", id), slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "final results archived", slog.String("experiment_id", id), slog.String("path", path))
}

func (s *Service) AvailableActions(ctx context.Context, id string) ([]domain.Action, error) {
	return retry.Do(ctx, s.policy, s.logger, "available actions", func(ctx context.Context) ([]domain.Action, error) {
		return s.controller.AvailableActions(ctx, id)
	})
}

// DeleteExperiment removes the experiment, its counters and any archive.
// Each step is retried on its own, so a transient failure while purging
// counters never re-runs the already committed definition delete.
func (s *Service) DeleteExperiment(ctx context.Context, id string) error {
	_, err := retry.Do(ctx, s.policy, s.logger, "delete experiment", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.controller.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	_, err = retry.Do(ctx, s.policy, s.logger, "purge experiment counters", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.controller.PurgeCounters(ctx, id)
	})
	if err != nil {
		return err
	}
	if s.archive != nil {
		if err := s.archive.Delete(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "failed to delete archived results", slog.String("experiment_id", id), slog.String("error", err.Error()))
		}
	}
	return nil
}

// Ingest records one participation event. Redelivery is safe: a record that
// changes nothing reports IngestDuplicateIgnored.
func (s *Service) Ingest(ctx context.Context, rec domain.ParticipationRecord) (domain.IngestOutcome, error) {
	outcome, err := retry.Do(ctx, s.policy, s.logger, "ingest", func(ctx context.Context) (domain.IngestOutcome, error) {
		return s.aggregator.Ingest(ctx, rec)
	})
	if err != nil {
		s.metrics.RecordIngestFailure(ctx, rec.ExperimentID, domain.KindOf(err))
		return "", err
	}
	s.metrics.RecordIngest(ctx, rec.ExperimentID, rec.VariantName, outcome)
	return outcome, nil
}

// Results computes the live summary.
func (s *Service) Results(ctx context.Context, id string) (*domain.ResultsSummary, error) {
	return retry.Do(ctx, s.policy, s.logger, "results", func(ctx context.Context) (*domain.ResultsSummary, error) {
		return s.engine.Summarize(ctx, id)
	})
}

// ArchivedResults returns the summary stored at completion, or NotFound.
func (s *Service) ArchivedResults(ctx context.Context, id string) (*domain.ResultsSummary, error) {
	if s.archive == nil {
		return nil, domain.NotFoundf("results archive is not configured")
	}
	summary, err := s.archive.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, domain.NotFoundf("no archived results for experiment %s", id)
	}
	return summary, nil
}
