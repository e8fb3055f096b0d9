package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/drugorders/identity-service/internal/domain"
)

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
	Meta    meta      `json:"meta"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, status, envelope{Success: true, Data: data, Meta: buildMeta(r)})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	write(w, status, envelope{Success: false, Error: &apiError{Code: code, Message: message, Details: details}, Meta: buildMeta(r)})
}

// FromError maps a core error onto its HTTP status and error code.
// Unrecognised errors are logged and reported as 500 without detail.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var verr domain.ValidationError
	switch {
	case errors.As(err, &verr):
		var details any
		if verr.Field != "" {
			details = map[string]string{"field": verr.Field}
		}
		Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", verr.Msg, details)
	case errors.Is(err, domain.ErrUserAlreadyExists):
		Error(w, r, http.StatusConflict, "ALREADY_EXISTS", "username is already taken", nil)
	case errors.Is(err, domain.ErrInvalidCredentials):
		Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password", nil)
	case domain.IsNotFound(err):
		Error(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	case domain.IsStoreUnavailable(err):
		slog.ErrorContext(r.Context(), "store unavailable", "path", r.URL.Path, "error", err.Error())
		Error(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "identity store unavailable", nil)
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
		Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func buildMeta(r *http.Request) meta {
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = r.Header.Get("X-Request-Id")
	}
	if id == "" {
		id = "req-unknown"
	}
	return meta{RequestID: id, Timestamp: time.Now().UTC()}
}
