package web

import (
	"net/http"
)

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Assign(r.Context(), r.PathValue("id"), r.URL.Query().Get("participantId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleIngest always reports the outcome or the failure so the source can
// decide whether to redeliver.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	outcome, err := s.svc.Ingest(r.Context(), req.record(r.PathValue("id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Outcome: outcome})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleArchivedResults(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.ArchivedResults(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
