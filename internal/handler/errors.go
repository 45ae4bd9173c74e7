package handler

import (
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/logger"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// retryAfterSeconds is advertised to clients that hit ErrContention.
const retryAfterSeconds = "1"

// statusFor maps an error kind to its HTTP status and whether the error
// message is safe to show the client.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, true
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, false
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, service.ErrCapacityExceeded):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrDeadlineExpired):
		return http.StatusGone, true
	case errors.Is(err, service.ErrNotEligible):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, service.ErrContention):
		return http.StatusServiceUnavailable, true
	default:
		return http.StatusInternalServerError, false
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, expose := statusFor(err)

	msg := http.StatusText(status)
	if expose {
		msg = err.Error()
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.WithContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}

	writeError(w, status, msg)
}
