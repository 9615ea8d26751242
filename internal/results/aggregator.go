// Package results ingests participation and conversion events and keeps
// idempotent per-variant counters.
package results

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/ports"
)

type Aggregator struct {
	experiments    ports.ExperimentRepository
	participations ports.ParticipationRepository
	logger         *slog.Logger
	now            func() time.Time
}

func NewAggregator(er ports.ExperimentRepository, pr ports.ParticipationRepository, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		experiments:    er,
		participations: pr,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Ingest validates the record against the experiment definition and hands it
// to the participation store, which applies dedup and increments atomically.
// Every failure is returned to the caller so the source can decide whether to
// redeliver.
func (a *Aggregator) Ingest(ctx context.Context, rec domain.ParticipationRecord) (domain.IngestOutcome, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	exp, err := a.experiments.GetByID(ctx, rec.ExperimentID)
	if err != nil {
		return "", fmt.Errorf("failed to get experiment: %w", err)
	}
	if exp == nil {
		return "", domain.Validationf("unknown experiment %s", rec.ExperimentID)
	}
	if _, ok := exp.Variant(rec.VariantName); !ok {
		return "", domain.Validationf("unknown variant %q for experiment %s", rec.VariantName, rec.ExperimentID)
	}
	if !exp.AcceptsOutcomes() {
		return "", domain.Validationf("experiment %s has not been started", rec.ExperimentID)
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = a.now()
	}

	outcome, err := a.participations.Record(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("failed to record participation: %w", err)
	}
	if err := a.discardIfDeleted(ctx, rec.ExperimentID); err != nil {
		return "", err
	}

	a.logger.DebugContext(ctx, "participation ingested",
		slog.String("experiment_id", rec.ExperimentID),
		slog.String("variant", rec.VariantName),
		slog.String("outcome", string(outcome)))
	return outcome, nil
}

// discardIfDeleted handles a delete that landed between the definition check
// and Record. Delete removes the definition before purging counters, so a
// missing definition here means the counters just written may have missed the
// purge and are removed again.
func (a *Aggregator) discardIfDeleted(ctx context.Context, experimentID string) error {
	exp, err := a.experiments.GetByID(ctx, experimentID)
	if err != nil {
		a.logger.WarnContext(ctx, "could not confirm experiment after ingest",
			slog.String("experiment_id", experimentID),
			slog.String("error", err.Error()))
		return nil
	}
	if exp != nil {
		return nil
	}
	if err := a.participations.DeleteExperiment(ctx, experimentID); err != nil {
		return fmt.Errorf("failed to discard counters of deleted experiment: %w", err)
	}
	return domain.Validationf("unknown experiment %s", experimentID)
}

// Snapshot returns the counters for every declared variant, including
// variants nobody has been counted under yet.
func (a *Aggregator) Snapshot(ctx context.Context, experimentID string) (domain.Snapshot, error) {
	exp, err := a.experiments.GetByID(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	if exp == nil {
		return nil, domain.NotFoundf("experiment %s not found", experimentID)
	}
	return a.snapshot(ctx, exp)
}

func (a *Aggregator) snapshot(ctx context.Context, exp *domain.Experiment) (domain.Snapshot, error) {
	raw, err := a.participations.Snapshot(ctx, exp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	snap := make(domain.Snapshot, len(exp.Variants))
	for _, v := range exp.Variants {
		snap[v.Name] = raw[v.Name]
	}
	return snap, nil
}
