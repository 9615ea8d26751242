package service

import (
	"context"
	"errors"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/ports"
)

// fanOut forwards every event to each exporter.
type fanOut []ports.MetricsExporter

// FanOut combines exporters. With no arguments it discards everything.
func FanOut(exporters ...ports.MetricsExporter) ports.MetricsExporter {
	return fanOut(exporters)
}

func (f fanOut) RecordIngest(ctx context.Context, experimentID, variant string, outcome domain.IngestOutcome) {
	for _, e := range f {
		e.RecordIngest(ctx, experimentID, variant, outcome)
	}
}

func (f fanOut) RecordIngestFailure(ctx context.Context, experimentID string, kind domain.ErrorKind) {
	for _, e := range f {
		e.RecordIngestFailure(ctx, experimentID, kind)
	}
}

func (f fanOut) RecordTransition(ctx context.Context, experimentID string, from, to domain.Status) {
	for _, e := range f {
		e.RecordTransition(ctx, experimentID, from, to)
	}
}

func (f fanOut) Close(ctx context.Context) error {
	var errs []error
	for _, e := range f {
		if err := e.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
