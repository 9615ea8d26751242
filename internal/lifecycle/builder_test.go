package lifecycle

import (
	"errors"
	"strings"
	"testing"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

func TestDraftBuilder_Defaults(t *testing.T) {
	draft, err := NewDraftBuilder("Photo prompt").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if draft.TrafficPercentage != 100 || len(draft.Variants) != 2 {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if draft.Variants[0].Description != DefaultControlDescription || draft.Variants[1].Description != DefaultTreatmentDescription {
		t.Errorf("unexpected descriptions: %+v", draft.Variants)
	}
}

func TestDraftBuilder_ValidatesOnlyOnBuild(t *testing.T) {
	b := NewDraftBuilder("Three way").Traffic(80)

	// 50 + 50 + 20 is invalid mid-edit, which is fine.
	b.AddVariant(domain.Variant{Name: "Treatment B", Percentage: 20})
	if _, err := b.Build(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for sum 120, got %v", err)
	}

	b.AddVariant(domain.Variant{Name: "Control", Percentage: 40}).
		AddVariant(domain.Variant{Name: "Treatment", Percentage: 40})
	draft, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(draft.Variants) != 3 || draft.Variants[0].Name != "Control" || draft.Variants[0].Percentage != 40 {
		t.Errorf("replacing a variant should keep its position: %+v", draft.Variants)
	}
}

func TestDraftBuilder_RemoveAndClear(t *testing.T) {
	b := NewDraftBuilder("x").RemoveVariant("Treatment")
	if _, err := b.Build(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("single variant should fail, got %v", err)
	}

	b.ClearVariants().
		AddVariant(domain.Variant{Name: "A", Percentage: 70}).
		AddVariant(domain.Variant{Name: "B", Percentage: 30})
	draft, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if draft.Variants[0].Name != "A" {
		t.Errorf("unexpected variants: %+v", draft.Variants)
	}
}

func TestDraftBuilder_BuildReturnsCopy(t *testing.T) {
	b := NewDraftBuilder("x")
	draft, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b.AddVariant(domain.Variant{Name: "Control", Percentage: 10})
	if draft.Variants[0].Percentage != 50 {
		t.Error("later edits leaked into a built draft")
	}
}

func TestLoadDraft(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, d domain.ExperimentDraft)
	}{
		{
			name: "full definition",
			yaml: `
name: Matching Algorithm V2
description: New ranking for found items
traffic_percentage: 60
variants:
  - name: Control
    description: Original experience
    percentage: 50
  - name: Treatment
    percentage: 50
`,
			check: func(t *testing.T, d domain.ExperimentDraft) {
				if d.TrafficPercentage != 60 || len(d.Variants) != 2 || d.Variants[0].Description != "Original experience" {
					t.Errorf("unexpected draft: %+v", d)
				}
			},
		},
		{
			name: "traffic defaults to 100",
			yaml: "name: x\nvariants:\n  - {name: A, percentage: 60}\n  - {name: B, percentage: 40}\n",
			check: func(t *testing.T, d domain.ExperimentDraft) {
				if d.TrafficPercentage != 100 {
					t.Errorf("TrafficPercentage = %d", d.TrafficPercentage)
				}
			},
		},
		{name: "sum 90", yaml: "name: x\nvariants:\n  - {name: A, percentage: 60}\n  - {name: B, percentage: 30}\n", wantErr: true},
		{name: "unknown key", yaml: "name: x\ntraffic: 50\n", wantErr: true},
		{name: "not yaml", yaml: "::::", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := LoadDraft(strings.NewReader(tt.yaml))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadDraft: %v", err)
			}
			tt.check(t, d)
		})
	}
}
