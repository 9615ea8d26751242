package web

import (
	"net/http"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	exps, err := s.svc.ListExperiments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]experimentResponse, 0, len(exps))
	for _, e := range exps {
		out = append(out, toExperimentResponse(e))
	}
	writeJSON(w, http.StatusOK, experimentListResponse{Experiments: out})
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	draft, err := req.draft()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	exp, err := s.svc.CreateExperiment(r.Context(), draft)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/experiments/"+exp.ID)
	writeJSON(w, http.StatusCreated, toExperimentResponse(exp))
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.svc.GetExperiment(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExperimentResponse(exp))
}

// handleUpdateExperimentStatus accepts {"status": "<target>"}; the target is
// resolved to an action through the transition table.
func (s *Server) handleUpdateExperimentStatus(w http.ResponseWriter, r *http.Request) {
	var req updateExperimentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	exp, err := s.svc.SetStatus(r.Context(), r.PathValue("id"), target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExperimentResponse(exp))
}

func (s *Server) handleDeleteExperiment(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteExperiment(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAvailableActions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actions, err := s.svc.AvailableActions(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if actions == nil {
		actions = []domain.Action{}
	}
	writeJSON(w, http.StatusOK, actionsResponse{ExperimentID: id, Actions: actions})
}

func (s *Server) handleApplyAction(w http.ResponseWriter, r *http.Request) {
	action, err := domain.ParseAction(r.PathValue("action"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	exp, err := s.svc.ApplyAction(r.Context(), r.PathValue("id"), action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExperimentResponse(exp))
}
