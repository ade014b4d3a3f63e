package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/openclaw/checkin-relay-go/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string              `json:"error"`
	Code  apperrors.ErrorCode `json:"code"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		// Wrap unknown errors as internal errors
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	WriteJSON(w, statusFromCode(appErr.Code), ErrorResponse{
		Error: appErr.Message,
		Code:  appErr.Code,
	})
}

// statusFromCode maps ErrorCode to HTTP status code
func statusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 400 Bad Request
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeMissingRequired,
		apperrors.ErrCodeBadEnvelope:
		return http.StatusBadRequest

	// 401 Unauthorized: one status for every admission failure
	case apperrors.ErrCodeInvalidSession:
		return http.StatusUnauthorized

	// 403 Forbidden
	case apperrors.ErrCodeNotPermitted:
		return http.StatusForbidden

	// 409 Conflict
	case apperrors.ErrCodeSessionFull:
		return http.StatusConflict

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 500 Internal Server Error
	case apperrors.ErrCodeInternal,
		apperrors.ErrCodeDatabase:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
