// Package memory provides in-process implementations of the repository ports.
// State is lost on restart; it backs tests and single-node demo deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

type ExperimentRepository struct {
	mu          sync.RWMutex
	experiments map[string]*domain.Experiment
}

func NewExperimentRepository() *ExperimentRepository {
	return &ExperimentRepository{experiments: make(map[string]*domain.Experiment)}
}

func (r *ExperimentRepository) Create(ctx context.Context, experiment *domain.Experiment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.experiments[experiment.ID]; exists {
		return domain.Conflictf("experiment %s already exists", experiment.ID)
	}
	r.experiments[experiment.ID] = cloneExperiment(experiment)
	return nil
}

func (r *ExperimentRepository) GetByID(ctx context.Context, id string) (*domain.Experiment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exp, ok := r.experiments[id]
	if !ok {
		return nil, nil
	}
	return cloneExperiment(exp), nil
}

func (r *ExperimentRepository) List(ctx context.Context) ([]*domain.Experiment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Experiment, 0, len(r.experiments))
	for _, exp := range r.experiments {
		out = append(out, cloneExperiment(exp))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ExperimentRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok || exp.Status != from {
		return false, nil
	}
	exp.Status = to
	exp.UpdatedAt = at
	return true, nil
}

func (r *ExperimentRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.experiments[id]; !ok {
		return false, nil
	}
	delete(r.experiments, id)
	return true, nil
}

func cloneExperiment(e *domain.Experiment) *domain.Experiment {
	c := *e
	c.Variants = append([]domain.Variant(nil), e.Variants...)
	return &c
}
