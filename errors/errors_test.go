package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorWrapsInvalidInput(t *testing.T) {
	err := NewValidation("query", "cannot be empty")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected validation error to wrap ErrInvalidInput")
	}
	if !IsValidation(err) {
		t.Errorf("IsValidation returned false for a ValidationError")
	}
	wrapped := fmt.Errorf("writer: %w", err)
	if !IsValidation(wrapped) {
		t.Errorf("IsValidation returned false for a wrapped ValidationError")
	}
}

func TestTransportErrorTransient(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
		{422, false},
	}
	for _, tc := range cases {
		te := NewTransport("llm.generate", tc.status, errors.New("boom"))
		if te.Transient() != tc.transient {
			t.Errorf("status %d: Transient() = %v, want %v", tc.status, te.Transient(), tc.transient)
		}
		if IsTransient(te) != tc.transient {
			t.Errorf("status %d: IsTransient = %v, want %v", tc.status, IsTransient(te), tc.transient)
		}
	}
}

func TestIsTransientClassification(t *testing.T) {
	if IsTransient(nil) {
		t.Errorf("nil error should not be transient")
	}
	if IsTransient(NewValidation("intent", "missing")) {
		t.Errorf("validation errors are never transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Errorf("deadline exceeded should be transient")
	}
	if IsTransient(errors.New("some other error")) {
		t.Errorf("unclassified errors should not be transient")
	}
	// A validation error buried inside a transport wrapper still wins.
	te := NewTransport("llm.generate", 500, NewValidation("query", "empty"))
	if IsTransient(te) {
		t.Errorf("transport-wrapped validation error must not be retried")
	}
}
