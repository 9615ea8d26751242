package stats

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/memory"
	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

func twoArm() *domain.Experiment {
	return &domain.Experiment{
		ID:     "exp",
		Status: domain.StatusRunning,
		Variants: []domain.Variant{
			{Name: "Control", Percentage: 50},
			{Name: "Treatment", Percentage: 50},
		},
	}
}

func TestSummarize_ReferenceScenario(t *testing.T) {
	snap := domain.Snapshot{
		"Control":   {Participants: 40, Conversions: 10},
		"Treatment": {Participants: 60, Conversions: 18},
	}

	got := Summarize(twoArm(), snap)

	if got.TotalParticipants != 100 {
		t.Errorf("TotalParticipants = %d, want 100", got.TotalParticipants)
	}
	if got.Comparison == nil {
		t.Fatal("expected a comparison block")
	}
	c := *got.Comparison
	assertNear(t, "controlRate", 25.0, c.ControlConversionRate)
	assertNear(t, "treatmentRate", 30.0, c.TreatmentConversionRate)
	assertNear(t, "relativeLift", 20.0, c.RelativeLift)
	// 100 participants is exactly the gate: enough data.
	if c.NeedsMoreData {
		t.Error("needsMoreData should be false at 100 participants")
	}
	if c.ControlVariant != "Control" || c.TreatmentVariant != "Treatment" {
		t.Errorf("unexpected variant labels: %+v", c)
	}
}

func TestSummarize_NeedsMoreDataBoundary(t *testing.T) {
	tests := []struct {
		name         string
		control      int64
		treatment    int64
		wantMoreData bool
	}{
		{name: "99 participants", control: 40, treatment: 59, wantMoreData: true},
		{name: "100 participants", control: 40, treatment: 60, wantMoreData: false},
		{name: "no participants", control: 0, treatment: 0, wantMoreData: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A huge observed lift does not lift the gate.
			snap := domain.Snapshot{
				"Control":   {Participants: tt.control, Conversions: 0},
				"Treatment": {Participants: tt.treatment, Conversions: tt.treatment},
			}
			got := Summarize(twoArm(), snap)
			if got.Comparison.NeedsMoreData != tt.wantMoreData {
				t.Errorf("needsMoreData = %v, want %v", got.Comparison.NeedsMoreData, tt.wantMoreData)
			}
		})
	}
}

func TestSummarize_ZeroParticipants(t *testing.T) {
	got := Summarize(twoArm(), domain.Snapshot{})

	for _, v := range got.Variants {
		if v.ConversionRate != 0 || math.IsNaN(v.ConversionRate) {
			t.Errorf("variant %s: rate %v, want 0", v.Name, v.ConversionRate)
		}
	}
	if got.Comparison.RelativeLift != 0 || math.IsNaN(got.Comparison.RelativeLift) {
		t.Errorf("lift = %v, want 0", got.Comparison.RelativeLift)
	}
}

func TestSummarize_ZeroControlRate(t *testing.T) {
	snap := domain.Snapshot{
		"Control":   {Participants: 50, Conversions: 0},
		"Treatment": {Participants: 50, Conversions: 10},
	}
	got := Summarize(twoArm(), snap)
	assertNear(t, "treatmentRate", 20.0, got.Comparison.TreatmentConversionRate)
	assertNear(t, "relativeLift", 0, got.Comparison.RelativeLift)
}

func TestSummarize_MultipleTreatments(t *testing.T) {
	exp := &domain.Experiment{
		ID: "exp",
		Variants: []domain.Variant{
			{Name: "Compact", Percentage: 30},
			{Name: "Control", Percentage: 40},
			{Name: "Gallery", Percentage: 30},
		},
	}
	snap := domain.Snapshot{
		"Compact": {Participants: 30, Conversions: 6},
		"Control": {Participants: 40, Conversions: 4},
		"Gallery": {Participants: 30, Conversions: 3},
	}

	got := Summarize(exp, snap)

	if len(got.Comparisons) != 2 {
		t.Fatalf("expected one comparison per treatment, got %d", len(got.Comparisons))
	}
	if got.Comparisons[0].TreatmentVariant != "Compact" || got.Comparisons[1].TreatmentVariant != "Gallery" {
		t.Errorf("comparisons not in declared order: %+v", got.Comparisons)
	}
	assertNear(t, "compact lift", 100.0, got.Comparisons[0].RelativeLift)
	assertNear(t, "gallery lift", 0, got.Comparisons[1].RelativeLift)
	if got.Comparison.TreatmentVariant != "Compact" {
		t.Errorf("primary comparison should be first treatment, got %s", got.Comparison.TreatmentVariant)
	}
	if got.Variants[0].Name != "Compact" {
		t.Errorf("variants should keep declared order, got %s first", got.Variants[0].Name)
	}
}

func TestSummarize_FirstVariantIsControlWithoutNamedControl(t *testing.T) {
	exp := &domain.Experiment{
		ID:       "exp",
		Variants: []domain.Variant{{Name: "Old", Percentage: 50}, {Name: "New", Percentage: 50}},
	}
	got := Summarize(exp, domain.Snapshot{})
	if got.Comparison.ControlVariant != "Old" {
		t.Errorf("expected Old as control, got %s", got.Comparison.ControlVariant)
	}
}

func TestEngine_Summarize(t *testing.T) {
	ctx := context.Background()
	er := memory.NewExperimentRepository()
	pr := memory.NewParticipationRepository()
	exp := twoArm()
	exp.CreatedAt = time.Now()
	if err := er.Create(ctx, exp); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, rec := range []domain.ParticipationRecord{
		{ExperimentID: "exp", VariantName: "Control", ParticipantID: "a", Converted: true},
		{ExperimentID: "exp", VariantName: "Treatment", ParticipantID: "b"},
	} {
		if _, err := pr.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	engine := NewEngine(er, pr)
	got, err := engine.Summarize(ctx, "exp")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got.TotalParticipants != 2 || !got.Comparison.NeedsMoreData {
		t.Errorf("unexpected summary: %+v", got)
	}
	assertNear(t, "lift", -100.0, got.Comparison.RelativeLift)

	if _, err := engine.Summarize(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func assertNear(t *testing.T, name string, expected, actual float64) {
	t.Helper()
	if math.Abs(expected-actual) > 0.0001 {
		t.Errorf("%s: expected %.4f, got %.4f", name, expected, actual)
	}
}
