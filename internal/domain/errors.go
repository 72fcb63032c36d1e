package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Generic error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Search request error codes, surfaced verbatim in the error envelope.
const (
	ErrCodeQueryTooShort      = "QUERY_TOO_SHORT"
	ErrCodeQueryTooLong       = "QUERY_TOO_LONG"
	ErrCodeInvalidLimit       = "INVALID_LIMIT"
	ErrCodeInvalidContentType = "INVALID_CONTENT_TYPE"
	ErrCodeMalformedBody      = "MALFORMED_BODY"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeSearchUnavailable  = "SEARCH_UNAVAILABLE"
)

var (
	ErrObjectNotFound   = NewDomainError(ErrCodeNotFound, "object not found")
	ErrInvalidPartition = NewDomainError(ErrCodeValidation, "offset must be in [0, batch-size)")
	ErrUnknownBackend   = NewDomainError(ErrCodeValidation, "unknown search backend")
)

// ValidationError is returned when caller input breaks a request rule.
// It always maps to 400.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// ServiceError is returned when a dependency stays unavailable after all
// retries. Status and RetryAfterSeconds are published to the caller.
type ServiceError struct {
	Code              string
	Message           string
	Status            int
	RetryAfterSeconds int
	Err               error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string, status, retryAfterSeconds int, err error) *ServiceError {
	return &ServiceError{
		Code:              code,
		Message:           message,
		Status:            status,
		RetryAfterSeconds: retryAfterSeconds,
		Err:               err,
	}
}

// AsValidationError reports whether err is, or wraps, a ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsServiceError reports whether err is, or wraps, a ServiceError.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
