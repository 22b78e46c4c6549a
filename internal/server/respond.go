package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/chart"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/client"
)

// errorResponse is the failure envelope.
type errorResponse struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error"`
	Details   string   `json:"details,omitempty"`
	Available []string `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func writeUnknownDivision(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     "Unknown division: " + code,
		Available: chart.Codes(),
	})
}

// writeBadRequest maps request parsing and validation failures to 400.
func writeBadRequest(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, "validation failed", ve.msg)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request", err.Error())
}

// writeFetchError maps an orchestrator failure to its HTTP status.
func writeFetchError(w http.ResponseWriter, err error) {
	var fe *client.FetchError
	switch {
	case errors.As(err, &fe) && fe.Class == client.ErrorClassInvalidInput:
		writeError(w, http.StatusBadRequest, fe.Message, fe.Details)
	case errors.As(err, &fe):
		writeError(w, http.StatusInternalServerError, fe.Message, fe.Details)
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}
