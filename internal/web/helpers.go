package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

const maxBodyBytes = 1 << 20

// errorResponse is the body of every failed API call. The admin UI shows detail.
type errorResponse struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindInvalidTransition, domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindTransientStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with its kind. Errors without a kind are logged and
// reported as internal without leaking details.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "internal", Detail: "internal error"})
		return
	}

	status := statusForKind(derr.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("kind", string(derr.Kind)),
			slog.String("error", err.Error()))
	}
	detail := derr.Message
	if detail == "" {
		detail = err.Error()
	}
	writeJSON(w, status, errorResponse{Kind: string(derr.Kind), Detail: detail})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.Validationf("invalid JSON body: %v", err)
	}
	if dec.More() {
		return domain.Validationf("invalid JSON body: unexpected trailing data")
	}
	return nil
}
