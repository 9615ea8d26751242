// Package lifecycle owns the experiment state machine. Status changes go
// through the Controller only; it applies them with compare-and-set against
// the experiment store so racing requests cannot both succeed.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/lostfound-admin/internal/allocator"
	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/ports"
)

type Controller struct {
	experiments    ports.ExperimentRepository
	participations ports.ParticipationRepository
	logger         *slog.Logger
	now            func() time.Time
	newID          func() string
	onTransition   []TransitionHook
}

// TransitionHook runs after a status change has been committed.
type TransitionHook func(ctx context.Context, exp *domain.Experiment, from domain.Status)

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides the time source used for creation and update stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

func WithTransitionHook(h TransitionHook) Option {
	return func(c *Controller) { c.onTransition = append(c.onTransition, h) }
}

func NewController(er ports.ExperimentRepository, pr ports.ParticipationRepository, opts ...Option) *Controller {
	c := &Controller{
		experiments:    er,
		participations: pr,
		logger:         slog.Default(),
		now:            func() time.Time { return time.Now().UTC() },
		newID:          func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create validates the draft and persists a new experiment in draft status.
// Nothing is written when validation fails.
func (c *Controller) Create(ctx context.Context, draft domain.ExperimentDraft) (*domain.Experiment, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if err := allocator.ValidateTrafficPercentage(draft.TrafficPercentage); err != nil {
		return nil, err
	}
	if err := allocator.ValidateVariantSet(draft.Variants); err != nil {
		return nil, err
	}

	now := c.now()
	exp := &domain.Experiment{
		ID:                c.newID(),
		Name:              draft.Name,
		Description:       draft.Description,
		Status:            domain.StatusDraft,
		TrafficPercentage: draft.TrafficPercentage,
		Variants:          append([]domain.Variant(nil), draft.Variants...),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := c.experiments.Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to create experiment: %w", err)
	}

	c.logger.InfoContext(ctx, "experiment created",
		slog.String("experiment_id", exp.ID),
		slog.String("name", exp.Name),
		slog.Int("variants", len(exp.Variants)),
		slog.Int("traffic_percentage", exp.TrafficPercentage))
	return exp, nil
}

// Get returns the experiment with its cumulative participant count.
func (c *Controller) Get(ctx context.Context, id string) (*domain.Experiment, error) {
	exp, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.fillParticipantCount(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

// List returns all experiments, newest first, with participant counts.
func (c *Controller) List(ctx context.Context) ([]*domain.Experiment, error) {
	exps, err := c.experiments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	for _, exp := range exps {
		if err := c.fillParticipantCount(ctx, exp); err != nil {
			return nil, err
		}
	}
	return exps, nil
}

// Apply performs an admin action such as start or pause.
func (c *Controller) Apply(ctx context.Context, id string, action domain.Action) (*domain.Experiment, error) {
	exp, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	to, err := domain.NextStatus(exp.Status, action)
	if err != nil {
		return nil, err
	}
	return c.commit(ctx, exp, to, func(current domain.Status) error {
		_, err := domain.NextStatus(current, action)
		return err
	})
}

// TransitionTo moves the experiment to the target status, resolving the
// action from the transition table.
func (c *Controller) TransitionTo(ctx context.Context, id string, target domain.Status) (*domain.Experiment, error) {
	exp, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := domain.TransitionTo(exp.Status, target); err != nil {
		return nil, err
	}
	return c.commit(ctx, exp, target, func(current domain.Status) error {
		_, err := domain.TransitionTo(current, target)
		return err
	})
}

// commit applies the CAS. When it loses, the re-read status decides the
// error: still-legal means a retryable conflict, otherwise the move is now
// invalid.
func (c *Controller) commit(ctx context.Context, exp *domain.Experiment, to domain.Status, stillLegal func(domain.Status) error) (*domain.Experiment, error) {
	from := exp.Status
	at := c.now()

	ok, err := c.experiments.CompareAndSetStatus(ctx, exp.ID, from, to, at)
	if err != nil {
		return nil, fmt.Errorf("failed to update experiment status: %w", err)
	}
	if !ok {
		current, err := c.load(ctx, exp.ID)
		if err != nil {
			return nil, err
		}
		if err := stillLegal(current.Status); err != nil {
			c.logger.WarnContext(ctx, "transition rejected after concurrent change",
				slog.String("experiment_id", exp.ID),
				slog.String("from", string(from)),
				slog.String("current", string(current.Status)),
				slog.String("to", string(to)))
			return nil, err
		}
		return nil, domain.Conflictf("experiment %s changed from %s to %s concurrently", exp.ID, from, current.Status)
	}

	exp.Status = to
	exp.UpdatedAt = at

	c.logger.InfoContext(ctx, "experiment status changed",
		slog.String("experiment_id", exp.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	for _, h := range c.onTransition {
		h(ctx, exp, from)
	}

	// The status change is committed; a failed count read must not turn it
	// into an error the caller would retry.
	if err := c.fillParticipantCount(ctx, exp); err != nil {
		c.logger.WarnContext(ctx, "participant count unavailable after transition",
			slog.String("experiment_id", exp.ID),
			slog.String("error", err.Error()))
	}
	return exp, nil
}

// AvailableActions lists the actions legal for the experiment's current status.
func (c *Controller) AvailableActions(ctx context.Context, id string) ([]domain.Action, error) {
	exp, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.AvailableActions(exp.Status), nil
}

// Delete removes the experiment definition. Counters are removed separately
// by PurgeCounters so each step can be retried on its own.
func (c *Controller) Delete(ctx context.Context, id string) error {
	deleted, err := c.experiments.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	if !deleted {
		return domain.NotFoundf("experiment %s not found", id)
	}
	c.logger.InfoContext(ctx, "experiment deleted", slog.String("experiment_id", id))
	return nil
}

// PurgeCounters removes every participation record and counter of the
// experiment. Purging an experiment with no counters is a no-op.
func (c *Controller) PurgeCounters(ctx context.Context, id string) error {
	if err := c.participations.DeleteExperiment(ctx, id); err != nil {
		return fmt.Errorf("failed to delete experiment counters: %w", err)
	}
	return nil
}

func (c *Controller) load(ctx context.Context, id string) (*domain.Experiment, error) {
	exp, err := c.experiments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	if exp == nil {
		return nil, domain.NotFoundf("experiment %s not found", id)
	}
	return exp, nil
}

func (c *Controller) fillParticipantCount(ctx context.Context, exp *domain.Experiment) error {
	snap, err := c.participations.Snapshot(ctx, exp.ID)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}
	exp.ParticipantCount = snap.TotalParticipants()
	return nil
}
