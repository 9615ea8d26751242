package otel

// Config holds OTEL exporter configuration.
type Config struct {
	Endpoint string
	Enabled  bool
	Insecure bool
	// ServiceVersion is reported as the service.version resource attribute.
	ServiceVersion string
}
