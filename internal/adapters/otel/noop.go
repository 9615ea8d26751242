package otel

import (
	"context"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

// NoOpExporter is a metrics exporter that does nothing.
type NoOpExporter struct{}

// NewNoOpExporter creates a new no-op exporter for graceful degradation.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (e *NoOpExporter) RecordIngest(ctx context.Context, experimentID, variant string, outcome domain.IngestOutcome) {
}

func (e *NoOpExporter) RecordIngestFailure(ctx context.Context, experimentID string, kind domain.ErrorKind) {
}

func (e *NoOpExporter) RecordTransition(ctx context.Context, experimentID string, from, to domain.Status) {
}

func (e *NoOpExporter) Close(ctx context.Context) error {
	return nil
}
