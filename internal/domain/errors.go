package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for scoring integrity. Callers classify with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrRatingOutOfRange  = errors.New("rating out of range")
	ErrIncompleteInput   = errors.New("incomplete input")
	ErrUnknownItem       = errors.New("unknown item")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrInvalidResponse   = errors.New("invalid criterion response")
	ErrScoreOutOfBands   = errors.New("score outside configured bands")
	ErrInvalidBands      = errors.New("invalid band configuration")
	ErrInvalidNorm       = errors.New("invalid norm reference")
	ErrPersistence       = errors.New("persistence failure")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeIncompleteInput   = "INCOMPLETE_INPUT"
	ErrCodeRatingOutOfRange  = "RATING_OUT_OF_RANGE"
	ErrCodeUnknownInstrument = "UNKNOWN_INSTRUMENT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodePersistence       = "PERSISTENCE_ERROR"
	ErrCodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer    = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation        = "VALIDATION_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ErrorCode maps an engine or service error onto an API error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrIncompleteInput):
		return ErrCodeIncompleteInput
	case errors.Is(err, ErrRatingOutOfRange):
		return ErrCodeRatingOutOfRange
	case errors.Is(err, ErrUnknownInstrument):
		return ErrCodeUnknownInstrument
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrUnknownItem), errors.Is(err, ErrInvalidResponse):
		return ErrCodeInvalidInput
	case errors.Is(err, ErrPersistence):
		return ErrCodePersistence
	default:
		var ve *ValidationError
		if errors.As(err, &ve) {
			return ErrCodeValidation
		}
		return ErrCodeInternalServer
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// RangeError reports a rating outside its instrument's permitted range.
type RangeError struct {
	Field string `json:"field"`
	Value int    `json:"value"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
}

// Error implements the error interface
func (e *RangeError) Error() string {
	return fmt.Sprintf("rating for '%s' is %d, expected %d-%d", e.Field, e.Value, e.Min, e.Max)
}

// Unwrap lets errors.Is match ErrRatingOutOfRange.
func (e *RangeError) Unwrap() error {
	return ErrRatingOutOfRange
}

// IncompleteInputError lists required answers that were missing at compute time.
type IncompleteInputError struct {
	Instrument InstrumentKind `json:"instrument"`
	Missing    []string       `json:"missing"`
}

// Error implements the error interface
func (e *IncompleteInputError) Error() string {
	const shown = 5
	list := e.Missing
	suffix := ""
	if len(list) > shown {
		suffix = fmt.Sprintf(" (and %d more)", len(list)-shown)
		list = list[:shown]
	}
	return fmt.Sprintf("%s: %d required answer(s) missing: %s%s",
		e.Instrument, len(e.Missing), strings.Join(list, ", "), suffix)
}

// Unwrap lets errors.Is match ErrIncompleteInput.
func (e *IncompleteInputError) Unwrap() error {
	return ErrIncompleteInput
}
