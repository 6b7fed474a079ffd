// Package errors maps failures of the HTTP API to typed, JSON-encoded
// responses.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/zsiec/reframe/internal/reframe"
)

// ErrorType classifies an API error.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeUnsupported ErrorType = "UNSUPPORTED_FORMAT"
	ErrorTypeMalformed   ErrorType = "MALFORMED_STREAM"
	ErrorTypeTooLarge    ErrorType = "PAYLOAD_TOO_LARGE"
	ErrorTypeInternal    ErrorType = "INTERNAL_ERROR"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeRateLimit   ErrorType = "RATE_LIMIT"
)

// AppError is an error with the HTTP status and machine-readable type it
// should be reported with.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails sets details and returns e.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode sets the error code and returns e.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates an AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap creates an AppError caused by err.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewTooLargeError(limit int64) *AppError {
	return New(ErrorTypeTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge).
		WithDetails(map[string]interface{}{"limit": limit})
}

func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

func NewRateLimitError(message string) *AppError {
	return New(ErrorTypeRateLimit, message, http.StatusTooManyRequests)
}

// FromStream classifies a reframe session failure. Stream content problems
// are the client's (422), buffer exhaustion is a size problem (413), and
// context expiry is a timeout.
func FromStream(err error) *AppError {
	if appErr, ok := GetAppError(err); ok {
		return appErr
	}
	switch {
	case stderrors.Is(err, reframe.ErrUnsupportedFormat):
		return Wrap(err, ErrorTypeUnsupported, "stream format is not supported", http.StatusUnprocessableEntity).
			WithCode("unsupported_format")
	case stderrors.Is(err, reframe.ErrZeroLengthFrame):
		return Wrap(err, ErrorTypeMalformed, "stream contains a zero-length frame", http.StatusUnprocessableEntity).
			WithCode("zero_length_frame")
	case stderrors.Is(err, reframe.ErrMalformedUnit):
		return Wrap(err, ErrorTypeMalformed, "stream cannot be resynchronized", http.StatusUnprocessableEntity).
			WithCode("malformed_unit")
	case stderrors.Is(err, reframe.ErrAllocation):
		return Wrap(err, ErrorTypeTooLarge, "stream unit exceeds the buffer limit", http.StatusRequestEntityTooLarge).
			WithCode("buffer_limit")
	case stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrorTypeTimeout, "stream processing timed out", http.StatusGatewayTimeout)
	}
	return WrapInternalError(err, "An unexpected error occurred")
}

// GetAppError extracts the first AppError in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
