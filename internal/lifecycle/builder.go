package lifecycle

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/emiliopalmerini/lostfound-admin/internal/allocator"
	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

// Default variant descriptions used by NewDraftBuilder.
const (
	DefaultControlDescription   = "Original experience"
	DefaultTreatmentDescription = "New experience"
)

// DraftBuilder collects variant edits and validates only once, in Build.
// Intermediate states such as percentages summing to 70 are allowed.
type DraftBuilder struct {
	draft domain.ExperimentDraft
}

// NewDraftBuilder starts from a 50/50 Control/Treatment split at full traffic.
func NewDraftBuilder(name string) *DraftBuilder {
	return &DraftBuilder{draft: domain.ExperimentDraft{
		Name:              name,
		TrafficPercentage: 100,
		Variants: []domain.Variant{
			{Name: domain.ControlVariantName, Description: DefaultControlDescription, Percentage: 50},
			{Name: "Treatment", Description: DefaultTreatmentDescription, Percentage: 50},
		},
	}}
}

func (b *DraftBuilder) Description(d string) *DraftBuilder {
	b.draft.Description = d
	return b
}

func (b *DraftBuilder) Traffic(p int) *DraftBuilder {
	b.draft.TrafficPercentage = p
	return b
}

// ClearVariants drops every variant, including the defaults.
func (b *DraftBuilder) ClearVariants() *DraftBuilder {
	b.draft.Variants = nil
	return b
}

// AddVariant appends a variant, or replaces one with the same name in place.
func (b *DraftBuilder) AddVariant(v domain.Variant) *DraftBuilder {
	for i := range b.draft.Variants {
		if b.draft.Variants[i].Name == v.Name {
			b.draft.Variants[i] = v
			return b
		}
	}
	b.draft.Variants = append(b.draft.Variants, v)
	return b
}

func (b *DraftBuilder) RemoveVariant(name string) *DraftBuilder {
	kept := b.draft.Variants[:0]
	for _, v := range b.draft.Variants {
		if v.Name != name {
			kept = append(kept, v)
		}
	}
	b.draft.Variants = kept
	return b
}

// Build validates the accumulated draft and returns a copy of it.
func (b *DraftBuilder) Build() (domain.ExperimentDraft, error) {
	draft := b.draft
	draft.Variants = append([]domain.Variant(nil), b.draft.Variants...)

	if err := draft.Validate(); err != nil {
		return domain.ExperimentDraft{}, err
	}
	if err := allocator.ValidateTrafficPercentage(draft.TrafficPercentage); err != nil {
		return domain.ExperimentDraft{}, err
	}
	if err := allocator.ValidateVariantSet(draft.Variants); err != nil {
		return domain.ExperimentDraft{}, err
	}
	return draft, nil
}

// LoadDraft reads an experiment definition in YAML. Unknown keys are rejected.
func LoadDraft(r io.Reader) (domain.ExperimentDraft, error) {
	var draft domain.ExperimentDraft
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&draft); err != nil {
		return domain.ExperimentDraft{}, domain.Validationf("invalid experiment definition: %v", err)
	}
	if draft.TrafficPercentage == 0 {
		draft.TrafficPercentage = 100
	}

	b := &DraftBuilder{draft: draft}
	built, err := b.Build()
	if err != nil {
		return domain.ExperimentDraft{}, fmt.Errorf("experiment definition: %w", err)
	}
	return built, nil
}
