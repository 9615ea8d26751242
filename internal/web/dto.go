package web

import (
	"time"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

type experimentMetrics struct {
	TotalParticipants int64 `json:"totalParticipants"`
}

type experimentResponse struct {
	ExperimentID      string            `json:"experimentId"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Status            domain.Status     `json:"status"`
	TrafficPercentage int               `json:"trafficPercentage"`
	Variants          []domain.Variant  `json:"variants"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	Metrics           experimentMetrics `json:"metrics"`
	AvailableActions  []domain.Action   `json:"availableActions"`
}

func toExperimentResponse(e *domain.Experiment) experimentResponse {
	actions := domain.AvailableActions(e.Status)
	if actions == nil {
		actions = []domain.Action{}
	}
	return experimentResponse{
		ExperimentID:      e.ID,
		Name:              e.Name,
		Description:       e.Description,
		Status:            e.Status,
		TrafficPercentage: e.TrafficPercentage,
		Variants:          e.Variants,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
		Metrics:           experimentMetrics{TotalParticipants: e.ParticipantCount},
		AvailableActions:  actions,
	}
}

type experimentListResponse struct {
	Experiments []experimentResponse `json:"experiments"`
}

// createExperimentRequest accepts the traffic share as trafficPercentage or
// as traffic_percentage, which the admin page sends.
type createExperimentRequest struct {
	Name                   string           `json:"name"`
	Description            string           `json:"description"`
	TrafficPercentage      *int             `json:"trafficPercentage"`
	TrafficPercentageSnake *int             `json:"traffic_percentage"`
	Variants               []domain.Variant `json:"variants"`
}

func (req createExperimentRequest) draft() (domain.ExperimentDraft, error) {
	traffic := 100
	switch {
	case req.TrafficPercentage != nil && req.TrafficPercentageSnake != nil && *req.TrafficPercentage != *req.TrafficPercentageSnake:
		return domain.ExperimentDraft{}, domain.Validationf("trafficPercentage and traffic_percentage disagree")
	case req.TrafficPercentage != nil:
		traffic = *req.TrafficPercentage
	case req.TrafficPercentageSnake != nil:
		traffic = *req.TrafficPercentageSnake
	}
	return domain.ExperimentDraft{
		Name:              req.Name,
		Description:       req.Description,
		TrafficPercentage: traffic,
		Variants:          req.Variants,
	}, nil
}

type updateExperimentRequest struct {
	Status string `json:"status"`
}

type ingestRequest struct {
	ParticipantID string     `json:"participantId"`
	VariantName   string     `json:"variantName"`
	Converted     bool       `json:"converted"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

func (req ingestRequest) record(experimentID string) domain.ParticipationRecord {
	rec := domain.ParticipationRecord{
		ExperimentID:  experimentID,
		ParticipantID: req.ParticipantID,
		VariantName:   req.VariantName,
		Converted:     req.Converted,
	}
	if req.Timestamp != nil {
		rec.Timestamp = *req.Timestamp
	}
	return rec
}

type ingestResponse struct {
	Outcome domain.IngestOutcome `json:"outcome"`
}

type actionsResponse struct {
	ExperimentID string          `json:"experimentId"`
	Actions      []domain.Action `json:"actions"`
}
