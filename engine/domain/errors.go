package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested car, session or review does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDataUnavailable is returned when a knowledge source cannot answer,
	// as opposed to answering with nothing.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrBackendCallFailed covers model and remote chat backend failures.
	ErrBackendCallFailed = errors.New("backend call failed")
	// ErrMalformedResponse marks model output that could not be parsed.
	ErrMalformedResponse = errors.New("malformed response")
)

// Input rejections. Always returned inside a *ValidationError.
var (
	ErrInvalidCar       = errors.New("invalid car")
	ErrInvalidReview    = errors.New("invalid review")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrQueryTooLong     = errors.New("query too long")
	ErrQueryInjection   = errors.New("query contains suspicious content")
	ErrYearOutOfRange   = errors.New("year out of range")
	ErrRatingOutOfRange = errors.New("rating out of range")
	ErrUnknownRelation  = errors.New("unknown relationship type")
)

// ValidationError names the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Wrapped)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Wrapped)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
