package ports

import (
	"context"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

// ResultsArchive keeps the final summary of completed experiments.
type ResultsArchive interface {
	Store(ctx context.Context, summary *domain.ResultsSummary) (string, error)
	// Get returns (nil, nil) when nothing is archived for the experiment.
	Get(ctx context.Context, experimentID string) (*domain.ResultsSummary, error)
	Delete(ctx context.Context, experimentID string) error
}
