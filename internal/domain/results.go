package domain

// NeedsMoreDataThreshold is the minimum number of total participants before a
// comparison is considered worth reading. It is a fixed sample-size gate, not a
// significance test.
const NeedsMoreDataThreshold = 100

// VariantResult is the derived per-variant view in a ResultsSummary.
type VariantResult struct {
	Name           string  `json:"name"`
	Participants   int64   `json:"participants"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
}

// Comparison contrasts one treatment against the control.
type Comparison struct {
	ControlVariant          string  `json:"controlVariant"`
	TreatmentVariant        string  `json:"treatmentVariant"`
	ControlConversionRate   float64 `json:"controlConversionRate"`
	TreatmentConversionRate float64 `json:"treatmentConversionRate"`
	RelativeLift            float64 `json:"relativeLift"`
	NeedsMoreData           bool    `json:"needsMoreData"`
}

// ResultsSummary is recomputed on every query and never persisted.
type ResultsSummary struct {
	ExperimentID      string          `json:"experimentId"`
	Name              string          `json:"name"`
	Status            Status          `json:"status"`
	TotalParticipants int64           `json:"totalParticipants"`
	Variants          []VariantResult `json:"variants"`
	// Comparison is the first treatment against the control; for a
	// two-variant experiment it is the only comparison.
	Comparison  *Comparison  `json:"comparison,omitempty"`
	Comparisons []Comparison `json:"comparisons"`
}
