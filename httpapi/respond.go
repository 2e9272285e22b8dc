package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aimlabs/eduauth"
)

type errorBody struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// fail maps engine errors onto the wire. Internal detail never reaches
// the client: unknown errors collapse to a generic 500 body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ra *eduauth.RetryAfterError
	if errors.As(err, &ra) {
		seconds := int64(ra.RetryAfter.Seconds())
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		respond(w, http.StatusTooManyRequests, errorBody{
			Error:      publicMessage(ra.Err),
			RetryAfter: seconds,
		})
		return
	}

	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	respond(w, status, errorBody{Error: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, eduauth.ErrInvalidInput),
		errors.Is(err, eduauth.ErrPasswordPolicy),
		errors.Is(err, eduauth.ErrInvalidRole),
		errors.Is(err, eduauth.ErrOTPInvalid),
		errors.Is(err, eduauth.ErrOTPExpired):
		return http.StatusBadRequest, publicMessage(err)
	case errors.Is(err, eduauth.ErrInvalidCredentials),
		errors.Is(err, eduauth.ErrTokenInvalid),
		errors.Is(err, eduauth.ErrTokenRevoked):
		return http.StatusUnauthorized, publicMessage(err)
	case errors.Is(err, eduauth.ErrAccountDisabled),
		errors.Is(err, eduauth.ErrPasswordAlreadySet):
		return http.StatusForbidden, publicMessage(err)
	case errors.Is(err, eduauth.ErrRegistrationNotFound),
		errors.Is(err, eduauth.ErrUserNotFound):
		return http.StatusNotFound, publicMessage(err)
	case errors.Is(err, eduauth.ErrEmailTaken),
		errors.Is(err, eduauth.ErrPhoneInFlight):
		return http.StatusConflict, publicMessage(err)
	case errors.Is(err, eduauth.ErrOTPDeliveryFailed):
		return http.StatusBadGateway, publicMessage(err)
	case errors.Is(err, eduauth.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	}
	return http.StatusInternalServerError, "internal error"
}

// publicMessage strips wrapped internals down to the sentinel text.
func publicMessage(err error) string {
	for _, sentinel := range []error{
		eduauth.ErrInvalidInput,
		eduauth.ErrPasswordPolicy,
		eduauth.ErrInvalidRole,
		eduauth.ErrOTPInvalid,
		eduauth.ErrOTPExpired,
		eduauth.ErrOTPDeliveryFailed,
		eduauth.ErrInvalidCredentials,
		eduauth.ErrTokenInvalid,
		eduauth.ErrTokenRevoked,
		eduauth.ErrAccountDisabled,
		eduauth.ErrPasswordAlreadySet,
		eduauth.ErrRegistrationNotFound,
		eduauth.ErrUserNotFound,
		eduauth.ErrEmailTaken,
		eduauth.ErrPhoneInFlight,
		eduauth.ErrAccountLocked,
		eduauth.ErrIPBlocked,
		eduauth.ErrRateLimited,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
