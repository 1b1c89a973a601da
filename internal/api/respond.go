package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/Potency/internal/dataset"
	"github.com/MikeSquared-Agency/Potency/internal/plot"
	"github.com/MikeSquared-Agency/Potency/internal/predictor"
	"github.com/MikeSquared-Agency/Potency/internal/session"
	"github.com/MikeSquared-Agency/Potency/internal/store"
)

type errorResponse struct {
	Error string             `json:"error"`
	Kind  string             `json:"kind"`
	Rows  []dataset.RowError `json:"rows,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	writeJSON(w, status, body)
}

// classify maps domain errors onto an HTTP status and a stable kind string.
func classify(err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}

	var (
		tooLarge *http.MaxBytesError
		ve       *dataset.ValidationError
		ie       *predictor.InputError
		pe       *store.PersistenceError
		re       *requestError
	)
	switch {
	case errors.As(err, &re):
		body.Kind = "bad_request"
		return http.StatusBadRequest, body
	case errors.As(err, &tooLarge):
		body.Kind = "too_large"
		return http.StatusRequestEntityTooLarge, body
	case errors.As(err, &ve):
		body.Kind, body.Rows = string(ve.Kind), ve.Rows
		if ve.Kind == dataset.DuplicateX {
			return http.StatusUnprocessableEntity, body
		}
		return http.StatusBadRequest, body
	case errors.Is(err, predictor.ErrInsufficientData):
		body.Kind = "insufficient_data"
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &ie):
		body.Kind = string(ie.Kind)
		return http.StatusBadRequest, body
	case errors.Is(err, predictor.ErrUnknownStrategy):
		body.Kind = "unknown_strategy"
		return http.StatusBadRequest, body
	case errors.Is(err, session.ErrNoModel):
		body.Kind = "no_model"
		return http.StatusConflict, body
	case errors.Is(err, session.ErrNoDataset):
		body.Kind = "no_dataset"
		return http.StatusConflict, body
	case errors.Is(err, plot.ErrDegenerateRange):
		body.Kind = "degenerate_range"
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, store.ErrModelNotFound):
		body.Kind = "model_not_found"
		return http.StatusNotFound, body
	case errors.As(err, &pe):
		body.Kind = string(pe.Op)
		return http.StatusInternalServerError, body
	}
	body.Kind = "internal"
	return http.StatusInternalServerError, body
}
