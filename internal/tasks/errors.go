package tasks

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction wraps any failure of the upstream API call.
	ErrExtraction = fmt.Errorf("extraction failed")

	// Validation failures
	ErrDuplicateKey     = fmt.Errorf("duplicate primary key")
	ErrNullValue        = fmt.Errorf("null values found")
	ErrInvalidTimestamp = fmt.Errorf("invalid played_at timestamp")

	// ErrLoad wraps any failure while appending to the store.
	ErrLoad = fmt.Errorf("load failed")
)

// ValidationError identifies the offending row and column of a failed validation check.
//
// Kind is one of [ErrDuplicateKey], [ErrNullValue] or [ErrInvalidTimestamp].
type ValidationError struct {
	Kind   error
	Column string
	Row    int
	Value  string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%v: column %s, row %d (%q)", e.Kind, e.Column, e.Row, e.Value)
	}
	return fmt.Sprintf("%v: column %s, row %d", e.Kind, e.Column, e.Row)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// IsValidationError reports whether err came from the transform gate.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
