package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_IsErrValidation(t *testing.T) {
	err := Field("content", "This field is required.")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ValidationError to match ErrValidation")
	}
	wrapped := fmt.Errorf("conversation: post: %w", err)
	if !errors.Is(wrapped, ErrValidation) {
		t.Fatal("expected wrapped ValidationError to match ErrValidation")
	}
	if errors.Is(wrapped, ErrForbidden) {
		t.Error("ValidationError should not match ErrForbidden")
	}
}

func TestValidationError_ErrorStableOrder(t *testing.T) {
	ve := NewValidationError()
	ve.Add("price", "must be zero or more")
	ve.Add("name", "This field is required.")
	want := "validation failed: name: This field is required.; price: must be zero or more"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationError_OrNil(t *testing.T) {
	ve := NewValidationError()
	if ve.OrNil() != nil {
		t.Error("empty ValidationError should collapse to nil")
	}
	ve.Add("name", "bad")
	if ve.OrNil() == nil {
		t.Error("non-empty ValidationError should not collapse to nil")
	}
}

func TestFieldErrors(t *testing.T) {
	err := fmt.Errorf("identity: signup: %w", Field("password2", "mismatch"))
	fields := FieldErrors(err)
	if len(fields["password2"]) != 1 {
		t.Fatalf("FieldErrors = %v, want password2 entry", fields)
	}
	if FieldErrors(ErrNotFound) != nil {
		t.Error("FieldErrors(ErrNotFound) should be nil")
	}
}
