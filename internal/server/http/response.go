package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scriptoria/litreview/internal/domain"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeDomainError maps a domain error onto an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	var valErr *domain.ValidationError
	switch {
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, valErr.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
