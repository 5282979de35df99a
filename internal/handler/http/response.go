package handler

import (
	"encoding/json"
	"errors"
	"github.com/rookgm/storefront/internal/models"
	"net/http"
)

// errorStatuses maps domain errors to response codes, first match wins
var errorStatuses = []struct {
	err    error
	status int
}{
	{models.ErrSignatureInvalid, http.StatusBadRequest},
	{models.ErrPayloadMalformed, http.StatusBadRequest},
	{models.ErrOrderNotFound, http.StatusBadRequest},
	{models.ErrReferenceMismatch, http.StatusBadRequest},
	{models.ErrUnknownProvider, http.StatusBadRequest},
	{models.ErrEmptyCart, http.StatusBadRequest},
	{models.ErrOrderNotPayable, http.StatusConflict},
	{models.ErrProductNotFound, http.StatusNotFound},
	{models.ErrInvalidQuantity, http.StatusUnprocessableEntity},
}

// statusFor returns response code for err
func statusFor(err error) int {
	var initErr *models.PaymentInitiationError
	if errors.As(err, &initErr) {
		if initErr.Temporary {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}

	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			return es.status
		}
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as JSON, internal details are hidden
func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := http.StatusText(code)
	if code < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, code, errorResponse{Error: msg})
}
