package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

type participant struct {
	variant   string
	converted bool
}

type variantCounters struct {
	participants atomic.Int64
	conversions  atomic.Int64
}

// experimentState serializes dedup decisions per experiment; counters are
// atomics so snapshots never block ingestion.
type experimentState struct {
	mu           sync.Mutex
	participants map[string]participant
	counters     sync.Map // variant name -> *variantCounters
}

func (s *experimentState) counter(variant string) *variantCounters {
	if c, ok := s.counters.Load(variant); ok {
		return c.(*variantCounters)
	}
	c, _ := s.counters.LoadOrStore(variant, &variantCounters{})
	return c.(*variantCounters)
}

type ParticipationRepository struct {
	mu          sync.RWMutex
	experiments map[string]*experimentState
}

func NewParticipationRepository() *ParticipationRepository {
	return &ParticipationRepository{experiments: make(map[string]*experimentState)}
}

func (r *ParticipationRepository) state(experimentID string) *experimentState {
	r.mu.RLock()
	s, ok := r.experiments[experimentID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.experiments[experimentID]; ok {
		return s
	}
	s = &experimentState{participants: make(map[string]participant)}
	r.experiments[experimentID] = s
	return s
}

func (r *ParticipationRepository) Record(ctx context.Context, rec domain.ParticipationRecord) (domain.IngestOutcome, error) {
	s := r.state(rec.ExperimentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.participants[rec.ParticipantID]
	if !seen {
		s.participants[rec.ParticipantID] = participant{variant: rec.VariantName, converted: rec.Converted}
		c := s.counter(rec.VariantName)
		c.participants.Add(1)
		if rec.Converted {
			c.conversions.Add(1)
		}
		return domain.IngestRecorded, nil
	}

	if prev.variant != rec.VariantName {
		return "", domain.Validationf("participant %s is already counted under variant %q", rec.ParticipantID, prev.variant)
	}
	if rec.Converted && !prev.converted {
		prev.converted = true
		s.participants[rec.ParticipantID] = prev
		s.counter(rec.VariantName).conversions.Add(1)
		return domain.IngestConverted, nil
	}
	return domain.IngestDuplicateIgnored, nil
}

func (r *ParticipationRepository) Snapshot(ctx context.Context, experimentID string) (domain.Snapshot, error) {
	r.mu.RLock()
	s, ok := r.experiments[experimentID]
	r.mu.RUnlock()

	snap := make(domain.Snapshot)
	if !ok {
		return snap, nil
	}
	s.counters.Range(func(key, value any) bool {
		c := value.(*variantCounters)
		snap[key.(string)] = domain.VariantCounters{
			Participants: c.participants.Load(),
			Conversions:  c.conversions.Load(),
		}
		return true
	})
	return snap, nil
}

func (r *ParticipationRepository) DeleteExperiment(ctx context.Context, experimentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.experiments, experimentID)
	return nil
}
