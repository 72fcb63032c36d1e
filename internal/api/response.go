package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/telemetry"
)

const (
	ContentTypeJSON       = "application/json"
	HeaderProtocolVersion = "X-MCP-Version"
	HeaderRequestID       = "X-Request-ID"
	HeaderRetryAfter      = "Retry-After"

	genericInternalMessage = "An unexpected error occurred"
)

// ErrorEnvelope is the body of every error response
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-readable code and human message
type ErrorBody struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", slog.String("error", err.Error()))
		}
	}
}

// Error writes an error envelope
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorEnvelope{Error: ErrorBody{Code: code, Message: message}})
}

// Classify maps err to the status and body it is published as. Unclassified
// errors never leak their detail.
func Classify(err error) (int, ErrorBody) {
	if ve, ok := domain.AsValidationError(err); ok {
		return http.StatusBadRequest, ErrorBody{Code: ve.Code, Message: ve.Message}
	}
	if se, ok := domain.AsServiceError(err); ok {
		status := se.Status
		if status == 0 {
			status = http.StatusServiceUnavailable
		}
		return status, ErrorBody{Code: se.Code, Message: se.Message, RetryAfterSeconds: se.RetryAfterSeconds}
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case domain.ErrCodeValidation:
			return http.StatusBadRequest, ErrorBody{Code: de.Code, Message: de.Message}
		case domain.ErrCodeNotFound:
			return http.StatusNotFound, ErrorBody{Code: de.Code, Message: de.Message}
		}
	}

	return http.StatusInternalServerError, ErrorBody{Code: domain.ErrCodeInternalError, Message: genericInternalMessage}
}

// HandleError writes the envelope for err and returns the status written.
// 5xx errors are captured to Sentry with their full detail.
func HandleError(w http.ResponseWriter, r *http.Request, err error) int {
	status, body := Classify(err)
	if body.RetryAfterSeconds > 0 {
		w.Header().Set(HeaderRetryAfter, strconv.Itoa(body.RetryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		telemetry.CaptureError(r.Context(), err)
	}
	JSON(w, status, ErrorEnvelope{Error: body})
	return status
}
