package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/memory"
	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/ports"
	"github.com/emiliopalmerini/lostfound-admin/internal/retry"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy() retry.Policy {
	return retry.Policy{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  100 * time.Millisecond,
		MaxRetries:      3,
	}
}

func draft() domain.ExperimentDraft {
	return domain.ExperimentDraft{
		Name:              "Matching Algorithm V2",
		TrafficPercentage: 100,
		Variants: []domain.Variant{
			{Name: "Control", Percentage: 50},
			{Name: "Treatment", Percentage: 50},
		},
	}
}

type recordingMetrics struct {
	mu          sync.Mutex
	ingests     map[domain.IngestOutcome]int
	failures    map[domain.ErrorKind]int
	transitions []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		ingests:  make(map[domain.IngestOutcome]int),
		failures: make(map[domain.ErrorKind]int),
	}
}

func (m *recordingMetrics) RecordIngest(_ context.Context, _, _ string, outcome domain.IngestOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingests[outcome]++
}

func (m *recordingMetrics) RecordIngestFailure(_ context.Context, _ string, kind domain.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind]++
}

func (m *recordingMetrics) RecordTransition(_ context.Context, _ string, from, to domain.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
}

func (m *recordingMetrics) Close(context.Context) error { return nil }

type memoryArchive struct {
	stored map[string]*domain.ResultsSummary
}

func (a *memoryArchive) Store(_ context.Context, s *domain.ResultsSummary) (string, error) {
	a.stored[s.ExperimentID] = s
	return "mem://" + s.ExperimentID, nil
}

func (a *memoryArchive) Get(_ context.Context, id string) (*domain.ResultsSummary, error) {
	return a.stored[id], nil
}

func (a *memoryArchive) Delete(_ context.Context, id string) error {
	delete(a.stored, id)
	return nil
}

func newTestService(t *testing.T, opts ...Option) (*Service, *recordingMetrics, *memoryArchive) {
	t.Helper()
	metrics := newRecordingMetrics()
	archive := &memoryArchive{stored: make(map[string]*domain.ResultsSummary)}
	base := []Option{
		WithLogger(quietLogger()),
		WithRetryPolicy(fastPolicy()),
		WithMetrics(metrics),
		WithArchive(archive),
	}
	svc := New(memory.NewExperimentRepository(), memory.NewParticipationRepository(), append(base, opts...)...)
	return svc, metrics, archive
}

func TestService_EndToEnd(t *testing.T) {
	svc, metrics, archive := newTestService(t)
	ctx := context.Background()

	exp, err := svc.CreateExperiment(ctx, draft())
	if err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}

	if _, err := svc.Ingest(ctx, domain.ParticipationRecord{ExperimentID: exp.ID, VariantName: "Control", ParticipantID: "p0"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ingest into draft should be rejected, got %v", err)
	}

	if _, err := svc.ApplyAction(ctx, exp.ID, domain.ActionStart); err != nil {
		t.Fatalf("start: %v", err)
	}

	// 40 control with 10 conversions, 60 treatment with 18.
	for i := 0; i < 100; i++ {
		variant, converted := "Control", i < 10
		if i >= 40 {
			variant, converted = "Treatment", i < 58
		}
		rec := domain.ParticipationRecord{
			ExperimentID:  exp.ID,
			VariantName:   variant,
			ParticipantID: "p" + string(rune('A'+i/26)) + string(rune('a'+i%26)),
			Converted:     converted,
		}
		if _, err := svc.Ingest(ctx, rec); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
		// Redelivery.
		if outcome, err := svc.Ingest(ctx, rec); err != nil || outcome != domain.IngestDuplicateIgnored {
			t.Fatalf("redelivery %d: %v %v", i, outcome, err)
		}
	}

	summary, err := svc.Results(ctx, exp.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if summary.TotalParticipants != 100 || summary.Comparison == nil {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	c := summary.Comparison
	if c.ControlConversionRate != 25 || c.TreatmentConversionRate != 30 || c.RelativeLift != 20 || c.NeedsMoreData {
		t.Errorf("unexpected comparison: %+v", c)
	}

	if _, err := svc.SetStatus(ctx, exp.ID, domain.StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	archived, err := svc.ArchivedResults(ctx, exp.ID)
	if err != nil {
		t.Fatalf("ArchivedResults: %v", err)
	}
	if archived.Status != domain.StatusCompleted || archived.TotalParticipants != 100 {
		t.Errorf("unexpected archive: %+v", archived)
	}

	if metrics.ingests[domain.IngestRecorded] != 100 || metrics.ingests[domain.IngestDuplicateIgnored] != 100 {
		t.Errorf("unexpected ingest metrics: %v", metrics.ingests)
	}
	if metrics.failures[domain.KindValidation] != 1 {
		t.Errorf("unexpected failure metrics: %v", metrics.failures)
	}
	if len(metrics.transitions) != 2 || metrics.transitions[1] != "running->completed" {
		t.Errorf("unexpected transitions: %v", metrics.transitions)
	}

	if err := svc.DeleteExperiment(ctx, exp.ID); err != nil {
		t.Fatalf("DeleteExperiment: %v", err)
	}
	if _, ok := archive.stored[exp.ID]; ok {
		t.Error("archive should be removed with the experiment")
	}
	if _, err := svc.GetExperiment(ctx, exp.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestService_Assign(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	exp, err := svc.CreateExperiment(ctx, draft())
	if err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}

	a, err := svc.Assign(ctx, exp.ID, "user-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if a.Included || a.Reason != "experiment is draft" {
		t.Errorf("draft experiment should not include anyone: %+v", a)
	}

	if _, err := svc.ApplyAction(ctx, exp.ID, domain.ActionStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	first, err := svc.Assign(ctx, exp.ID, "user-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !first.Included || first.Variant == "" {
		t.Fatalf("expected inclusion at 100%% traffic: %+v", first)
	}
	for i := 0; i < 5; i++ {
		again, _ := svc.Assign(ctx, exp.ID, "user-1")
		if again.Variant != first.Variant {
			t.Fatalf("assignment changed: %s then %s", first.Variant, again.Variant)
		}
	}

	if _, err := svc.Assign(ctx, exp.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for empty participant, got %v", err)
	}
	if _, err := svc.Assign(ctx, "missing", "user-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

// flakyParticipations fails the first n Record calls with a transient error.
type flakyParticipations struct {
	*memory.ParticipationRepository
	failures int
}

func (f *flakyParticipations) Record(ctx context.Context, rec domain.ParticipationRecord) (domain.IngestOutcome, error) {
	if f.failures > 0 {
		f.failures--
		return "", domain.TransientStore("store unavailable", errors.New("connection reset"))
	}
	return f.ParticipationRepository.Record(ctx, rec)
}

var _ ports.ParticipationRepository = (*flakyParticipations)(nil)

func TestService_IngestRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	er := memory.NewExperimentRepository()
	pr := &flakyParticipations{ParticipationRepository: memory.NewParticipationRepository(), failures: 2}
	svc := New(er, pr, WithLogger(quietLogger()), WithRetryPolicy(fastPolicy()))

	exp, err := svc.CreateExperiment(ctx, draft())
	if err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}
	if _, err := svc.ApplyAction(ctx, exp.ID, domain.ActionStart); err != nil {
		t.Fatalf("start: %v", err)
	}

	outcome, err := svc.Ingest(ctx, domain.ParticipationRecord{ExperimentID: exp.ID, VariantName: "Control", ParticipantID: "p1"})
	if err != nil || outcome != domain.IngestRecorded {
		t.Fatalf("expected recorded after retries, got %v %v", outcome, err)
	}

	pr.failures = 100
	_, err = svc.Ingest(ctx, domain.ParticipationRecord{ExperimentID: exp.ID, VariantName: "Control", ParticipantID: "p2"})
	if !errors.Is(err, domain.ErrTransientStore) {
		t.Errorf("expected transient error after exhausting retries, got %v", err)
	}
}

// unsteadyCounters fails the next Snapshot or DeleteExperiment calls with a
// transient error, after the caller has already committed earlier steps.
type unsteadyCounters struct {
	*memory.ParticipationRepository
	snapshotFailures int
	deleteFailures   int
	deleteCalls      int
}

func (u *unsteadyCounters) Snapshot(ctx context.Context, experimentID string) (domain.Snapshot, error) {
	if u.snapshotFailures > 0 {
		u.snapshotFailures--
		return nil, domain.TransientStore("store unavailable", errors.New("i/o timeout"))
	}
	return u.ParticipationRepository.Snapshot(ctx, experimentID)
}

func (u *unsteadyCounters) DeleteExperiment(ctx context.Context, experimentID string) error {
	u.deleteCalls++
	if u.deleteFailures > 0 {
		u.deleteFailures--
		return domain.TransientStore("store unavailable", errors.New("i/o timeout"))
	}
	return u.ParticipationRepository.DeleteExperiment(ctx, experimentID)
}

var _ ports.ParticipationRepository = (*unsteadyCounters)(nil)

func TestService_TransitionSucceedsWhenCountReadFails(t *testing.T) {
	ctx := context.Background()
	er := memory.NewExperimentRepository()
	pr := &unsteadyCounters{ParticipationRepository: memory.NewParticipationRepository()}
	metrics := newRecordingMetrics()
	svc := New(er, pr, WithLogger(quietLogger()), WithRetryPolicy(fastPolicy()), WithMetrics(metrics))

	exp, err := svc.CreateExperiment(ctx, draft())
	if err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}

	pr.snapshotFailures = 1
	started, err := svc.ApplyAction(ctx, exp.ID, domain.ActionStart)
	if err != nil {
		t.Fatalf("start should succeed once the status is committed, got %v", err)
	}
	if started.Status != domain.StatusRunning {
		t.Errorf("status = %s, want running", started.Status)
	}

	pr.snapshotFailures = 1
	paused, err := svc.SetStatus(ctx, exp.ID, domain.StatusPaused)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != domain.StatusPaused {
		t.Errorf("status = %s, want paused", paused.Status)
	}

	stored, _ := er.GetByID(ctx, exp.ID)
	if stored.Status != domain.StatusPaused {
		t.Errorf("stored status = %s, want paused", stored.Status)
	}
	if len(metrics.transitions) != 2 {
		t.Errorf("each transition should be recorded once, got %v", metrics.transitions)
	}
}

func TestService_DeleteRetriesOnlyTheCounterPurge(t *testing.T) {
	ctx := context.Background()
	pr := &unsteadyCounters{ParticipationRepository: memory.NewParticipationRepository()}
	svc := New(memory.NewExperimentRepository(), pr, WithLogger(quietLogger()), WithRetryPolicy(fastPolicy()))

	exp, err := svc.CreateExperiment(ctx, draft())
	if err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}
	if _, err := svc.ApplyAction(ctx, exp.ID, domain.ActionStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Ingest(ctx, domain.ParticipationRecord{ExperimentID: exp.ID, VariantName: "Control", ParticipantID: "p1"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	pr.deleteFailures = 1
	if err := svc.DeleteExperiment(ctx, exp.ID); err != nil {
		t.Fatalf("DeleteExperiment should succeed after retrying the purge, got %v", err)
	}
	if pr.deleteCalls != 2 {
		t.Errorf("counter purge calls = %d, want 2", pr.deleteCalls)
	}
	snap, _ := pr.ParticipationRepository.Snapshot(ctx, exp.ID)
	if snap.TotalParticipants() != 0 {
		t.Errorf("counters should be purged, got %v", snap)
	}
	if _, err := svc.GetExperiment(ctx, exp.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestService_ArchivedResultsWithoutArchive(t *testing.T) {
	svc := New(memory.NewExperimentRepository(), memory.NewParticipationRepository(), WithLogger(quietLogger()))
	if _, err := svc.ArchivedResults(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestFanOut(t *testing.T) {
	a, b := newRecordingMetrics(), newRecordingMetrics()
	f := FanOut(a, b)
	f.RecordIngest(context.Background(), "exp", "Control", domain.IngestConverted)
	f.RecordTransition(context.Background(), "exp", domain.StatusDraft, domain.StatusRunning)
	if a.ingests[domain.IngestConverted] != 1 || b.ingests[domain.IngestConverted] != 1 {
		t.Error("every exporter should receive the event")
	}
	if err := f.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}
