package domain

import "time"

// ParticipationRecord is one outcome event delivered by upstream instrumentation.
// Delivery is at-least-once, so the same participant may be reported repeatedly.
type ParticipationRecord struct {
	ExperimentID  string    `json:"experimentId" validate:"required"`
	VariantName   string    `json:"variantName" validate:"required"`
	ParticipantID string    `json:"participantId" validate:"required,max=256"`
	Converted     bool      `json:"converted"`
	Timestamp     time.Time `json:"timestamp"`
}

// IngestOutcome reports what an ingestion did to the counters.
type IngestOutcome string

const (
	// IngestRecorded means the participant was counted for the first time.
	IngestRecorded IngestOutcome = "recorded"
	// IngestConverted means an already counted participant flipped to converted.
	IngestConverted IngestOutcome = "converted"
	// IngestDuplicateIgnored means the record changed nothing.
	IngestDuplicateIgnored IngestOutcome = "duplicate_ignored"
)

// Applied reports whether the outcome changed any counter.
func (o IngestOutcome) Applied() bool {
	return o == IngestRecorded || o == IngestConverted
}

// VariantCounters are the monotonically non-decreasing totals for one variant.
type VariantCounters struct {
	Participants int64 `json:"participants"`
	Conversions  int64 `json:"conversions"`
}

// Snapshot maps variant name to its counters.
type Snapshot map[string]VariantCounters

// TotalParticipants sums participants over all variants.
func (s Snapshot) TotalParticipants() int64 {
	var total int64
	for _, c := range s {
		total += c.Participants
	}
	return total
}
