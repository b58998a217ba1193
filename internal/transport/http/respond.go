package httptransport

import (
	"errors"
	"net/http"

	"presence/internal/domain"
	"presence/pkg/platform/httputil"
	"presence/pkg/platform/sentinel"
)

// writeError translates engine rejections into HTTP statuses. Ordering
// conflicts are 409 (definitive, do not retry the same event), verification
// rejections 422 (retry with a fresh event), closed occasions 410.
func writeError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		httputil.WriteError(w, kindStatus(de.Kind), string(de.Kind), de.Error())
		return
	}

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, sentinel.ErrInvalidState):
		httputil.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, sentinel.ErrConflict):
		httputil.WriteError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, sentinel.ErrUnavailable):
		httputil.WriteError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func kindStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindLowConfidence, domain.KindAmbiguous:
		return http.StatusUnprocessableEntity
	case domain.KindMatcherTimeout:
		return http.StatusGatewayTimeout
	case domain.KindOccasionClosed:
		return http.StatusGone
	case domain.KindAlreadyMarked, domain.KindAlreadyCheckedIn,
		domain.KindNotCheckedIn, domain.KindAlreadyCheckedOut,
		domain.KindPersistenceConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, description string) {
	httputil.WriteError(w, http.StatusBadRequest, "invalid_request", description)
}
