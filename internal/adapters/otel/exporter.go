package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

const (
	serviceName           = "lostfound-admin"
	defaultServiceVersion = "dev"
)

// Exporter exports experimentation metrics to an OTEL Collector.
type Exporter struct {
	provider         *sdkmetric.MeterProvider
	participantTotal metric.Int64Counter
	conversionTotal  metric.Int64Counter
	duplicateTotal   metric.Int64Counter
	failureTotal     metric.Int64Counter
	transitionTotal  metric.Int64Counter
}

// NewExporter creates a new OTEL metrics exporter.
func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	return newExporter(ctx, cfg, sdkmetric.NewPeriodicReader(exp))
}

func newExporter(ctx context.Context, cfg Config, reader sdkmetric.Reader) (*Exporter, error) {
	version := cfg.ServiceVersion
	if version == "" {
		version = defaultServiceVersion
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	participantTotal, err := meter.Int64Counter(
		"lfadmin_participants_total",
		metric.WithDescription("Participants counted for the first time"),
		metric.WithUnit("{participant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating participants counter: %w", err)
	}

	conversionTotal, err := meter.Int64Counter(
		"lfadmin_conversions_total",
		metric.WithDescription("Participants that flipped to converted"),
		metric.WithUnit("{participant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversions counter: %w", err)
	}

	duplicateTotal, err := meter.Int64Counter(
		"lfadmin_duplicate_records_total",
		metric.WithDescription("Redelivered records that changed nothing"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duplicates counter: %w", err)
	}

	failureTotal, err := meter.Int64Counter(
		"lfadmin_ingest_failures_total",
		metric.WithDescription("Rejected or failed ingestions by error kind"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	transitionTotal, err := meter.Int64Counter(
		"lfadmin_status_transitions_total",
		metric.WithDescription("Committed experiment status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	return &Exporter{
		provider:         provider,
		participantTotal: participantTotal,
		conversionTotal:  conversionTotal,
		duplicateTotal:   duplicateTotal,
		failureTotal:     failureTotal,
		transitionTotal:  transitionTotal,
	}, nil
}

// RecordIngest counts one ingestion by its outcome.
func (e *Exporter) RecordIngest(ctx context.Context, experimentID, variant string, outcome domain.IngestOutcome) {
	opt := metric.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("variant", variant),
	)

	switch outcome {
	case domain.IngestRecorded:
		e.participantTotal.Add(ctx, 1, opt)
	case domain.IngestConverted:
		e.conversionTotal.Add(ctx, 1, opt)
	case domain.IngestDuplicateIgnored:
		e.duplicateTotal.Add(ctx, 1, opt)
	}
}

// RecordIngestFailure counts one rejected or failed ingestion.
func (e *Exporter) RecordIngestFailure(ctx context.Context, experimentID string, kind domain.ErrorKind) {
	if kind == "" {
		kind = "internal"
	}
	e.failureTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("kind", string(kind)),
	))
}

// RecordTransition counts one committed status change.
func (e *Exporter) RecordTransition(ctx context.Context, experimentID string, from, to domain.Status) {
	e.transitionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
