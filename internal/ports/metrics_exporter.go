package ports

import (
	"context"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

// MetricsExporter exports experimentation events to an external observability system.
type MetricsExporter interface {
	RecordIngest(ctx context.Context, experimentID, variant string, outcome domain.IngestOutcome)
	RecordIngestFailure(ctx context.Context, experimentID string, kind domain.ErrorKind)
	RecordTransition(ctx context.Context, experimentID string, from, to domain.Status)
	// Close shuts down the exporter and flushes any pending metrics.
	Close(ctx context.Context) error
}
