package ports

import (
	"context"
	"time"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

// ExperimentRepository is the durable record of experiment definitions.
// GetByID returns (nil, nil) when the experiment does not exist.
type ExperimentRepository interface {
	Create(ctx context.Context, experiment *domain.Experiment) error
	GetByID(ctx context.Context, id string) (*domain.Experiment, error)
	List(ctx context.Context) ([]*domain.Experiment, error)
	// CompareAndSetStatus moves the experiment to status to only if its stored
	// status is still from. It reports false when the stored status differs.
	CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) (bool, error)
	// Delete removes the experiment. It reports false when nothing was deleted.
	Delete(ctx context.Context, id string) (bool, error)
}
