package httpx

import (
	"errors"
	"net/http"

	"github.com/fakturio/fakturio/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrPeriodLocked):
		// Distinct, user-actionable condition: unlock the period and retry.
		Problem(w, http.StatusConflict, "Accounting Period Locked", err.Error())
	case errors.Is(err, shared.ErrAlreadyAssigned):
		Problem(w, http.StatusConflict, "Already Assigned", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
