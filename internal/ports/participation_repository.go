package ports

import (
	"context"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

// ParticipationRepository holds per-participant dedup state and per-variant
// counters. Record must apply the dedup check and the counter increments as
// one atomic step.
type ParticipationRepository interface {
	// Record counts a participant once per experiment. A later converted=true
	// for an unconverted participant increments conversions only. A record
	// naming a different variant than the one first recorded is rejected with
	// a validation error.
	Record(ctx context.Context, rec domain.ParticipationRecord) (domain.IngestOutcome, error)
	Snapshot(ctx context.Context, experimentID string) (domain.Snapshot, error)
	DeleteExperiment(ctx context.Context, experimentID string) error
}
