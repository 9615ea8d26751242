package service

import (
	"context"
	"fmt"

	"github.com/emiliopalmerini/lostfound-admin/internal/allocator"
	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/retry"
)

// Assignment is the allocator's answer for one participant.
type Assignment struct {
	ExperimentID  string `json:"experimentId"`
	ParticipantID string `json:"participantId"`
	Variant       string `json:"variant,omitempty"`
	Included      bool   `json:"included"`
	Reason        string `json:"reason,omitempty"`
}

// Assign resolves the variant a participant sees. Only running experiments
// include anyone; the answer for a given participant never changes while the
// experiment definition stays the same.
func (s *Service) Assign(ctx context.Context, experimentID, participantID string) (*Assignment, error) {
	if participantID == "" {
		return nil, domain.Validationf("participantId is required")
	}

	exp, err := retry.Do(ctx, s.policy, s.logger, "assign", func(ctx context.Context) (*domain.Experiment, error) {
		exp, err := s.experiments.GetByID(ctx, experimentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get experiment: %w", err)
		}
		if exp == nil {
			return nil, domain.NotFoundf("experiment %s not found", experimentID)
		}
		return exp, nil
	})
	if err != nil {
		return nil, err
	}

	a := &Assignment{ExperimentID: exp.ID, ParticipantID: participantID}
	if exp.Status != domain.StatusRunning {
		a.Reason = fmt.Sprintf("experiment is %s", exp.Status)
		return a, nil
	}

	variant, ok := allocator.AssignVariant(exp.ID, participantID, exp.Variants, exp.TrafficPercentage)
	if !ok {
		a.Reason = "outside traffic allocation"
		return a, nil
	}
	a.Variant = variant
	a.Included = true
	return a, nil
}
