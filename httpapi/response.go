package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/shopauth"
	"go.uber.org/zap"
)

const internalErrorMessage = "Internal Server Error"

// StatusFor maps an engine error onto its HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, shopauth.ErrValidation),
		errors.Is(err, shopauth.ErrOTPInvalid),
		errors.Is(err, shopauth.ErrOTPExpired),
		errors.Is(err, shopauth.ErrCodeInvalid),
		errors.Is(err, shopauth.ErrCodeExpired),
		errors.Is(err, shopauth.ErrCodeNotIssued),
		errors.Is(err, shopauth.ErrAlreadyVerified),
		errors.Is(err, shopauth.ErrDeliveryFailed),
		errors.Is(err, shopauth.ErrRoleInvalid):
		return http.StatusBadRequest
	case errors.Is(err, shopauth.ErrInvalidCredentials),
		errors.Is(err, shopauth.ErrTokenMissing),
		errors.Is(err, shopauth.ErrTokenInvalid),
		errors.Is(err, shopauth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shopauth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shopauth.ErrUserNotFound),
		errors.Is(err, shopauth.ErrPendingNotFound):
		return http.StatusNotFound
	case errors.Is(err, shopauth.ErrAccountExists),
		errors.Is(err, shopauth.ErrSignupPending),
		errors.Is(err, shopauth.ErrPasswordReuse):
		return http.StatusConflict
	case errors.Is(err, shopauth.ErrRateLimited),
		errors.Is(err, shopauth.ErrResendCooldown):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// envelope is the response body. Payload keys are merged next to success and message.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, payload envelope) {
	body := envelope{"success": true, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": false, "message": message})
}

// writeError maps err and writes it. Internal errors are logged and replaced
// by a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, status, internalErrorMessage)
		return
	}
	writeMessage(w, status, err.Error())
}
