// Package handler implements the JSON API surface. Handlers decode requests,
// delegate to the service layer, and map domain errors to HTTP status codes.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/tillgrange/choreboard/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// writeError translates an error into the appropriate HTTP response. Domain
// errors carry their code in the body; anything else is an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	if code == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	var status int
	switch code {
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeForbidden:
		status = http.StatusForbidden
	case domain.CodePatternInvalid:
		status = http.StatusBadRequest
	default:
		// Business-rule conflicts: invalid_transition, already_claimed,
		// not_yet_due, past_deadline, insufficient_points, limit_exceeded.
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(code),
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
