package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iota-uz/orgledger/pkg/composables"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/serrors"
)

// ErrorEnvelope is the JSON shape of every API error.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &ErrorEnvelope{Code: code, Message: message})
}

// writeDomainError maps engine errors onto HTTP statuses. Coded errors keep
// their code in the envelope; everything else is an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var coded *serrors.Error
	switch {
	case errors.Is(err, composables.ErrNoTenant):
		writeError(w, http.StatusBadRequest, "MISSING_TENANT", "tenant id header is required")
	case errors.Is(err, eventstore.ErrVersionConflict):
		writeError(w, http.StatusConflict, eventstore.ErrVersionConflict.Code, err.Error())
	case errors.As(err, &coded):
		writeError(w, http.StatusUnprocessableEntity, coded.Code, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
