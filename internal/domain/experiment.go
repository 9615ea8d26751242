package domain

import "time"

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// ParseStatus converts a raw status string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusRunning, StatusPaused, StatusCompleted:
		return Status(s), nil
	}
	return "", Validationf("unknown status %q", s)
}

// ControlVariantName is the conventional name of the baseline variant.
const ControlVariantName = "Control"

// Variant is one arm of an experiment.
type Variant struct {
	Name        string `json:"name" yaml:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" validate:"max=500"`
	Percentage  int    `json:"percentage" yaml:"percentage" validate:"gte=0,lte=100"`
}

type Experiment struct {
	ID                string
	Name              string
	Description       string
	Status            Status
	TrafficPercentage int
	Variants          []Variant
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ParticipantCount  int64
}

// Variant returns the variant with the given name.
func (e *Experiment) Variant(name string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// ControlVariant returns the baseline variant: the one named "Control",
// or the first declared variant when none is.
func (e *Experiment) ControlVariant() Variant {
	if v, ok := e.Variant(ControlVariantName); ok {
		return v
	}
	if len(e.Variants) == 0 {
		return Variant{}
	}
	return e.Variants[0]
}

// TreatmentVariants returns every declared variant except the control, in declared order.
func (e *Experiment) TreatmentVariants() []Variant {
	control := e.ControlVariant()
	treatments := make([]Variant, 0, len(e.Variants))
	for _, v := range e.Variants {
		if v.Name != control.Name {
			treatments = append(treatments, v)
		}
	}
	return treatments
}

// AcceptsOutcomes reports whether participation events may be recorded.
// Draft experiments have never been started, so no participant can have been assigned.
func (e *Experiment) AcceptsOutcomes() bool {
	return e.Status != StatusDraft
}
