// Package httpapi holds small helpers shared by the REST handlers.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/driftlab/boardroom/internal/models"
)

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteError maps domain errors onto HTTP statuses. Unknown errors become
// 500 with a generic body; their detail stays in the log only.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, models.ErrForbidden):
		WriteJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, models.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, models.ErrValidation):
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("internal error")
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// DecodeJSON decodes a request body, mapping failures to ErrValidation.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.ErrValidation
	}
	return nil
}
