package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/pulse-scheduler/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteError maps domain errors to status codes.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case appErrors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, appErrors.ErrInvalidFrequency):
		status = http.StatusBadRequest
	case errors.Is(err, appErrors.ErrInvalidTransition), errors.Is(err, appErrors.ErrRoundNotActive):
		status = http.StatusConflict
	}
	WriteJSON(w, status, map[string]string{"error": err.Error()})
}
