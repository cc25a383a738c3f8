// Package apperr defines the error kinds shared by the stores and the web
// layer. Stores wrap these sentinels; callers classify with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidOperation = errors.New("invalid operation")
)

// ValidationError carries field-level messages for a rejected form.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a message against a field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no field errors were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns e when it holds field errors, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// Error lists the fields in a stable order.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], ", ")))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FieldErrors extracts field messages from err, or nil when err carries none.
func FieldErrors(err error) map[string][]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// Field builds a single-field ValidationError.
func Field(field, msg string) error {
	ve := NewValidationError()
	ve.Add(field, msg)
	return ve
}
