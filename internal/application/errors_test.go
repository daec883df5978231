package application

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	unlockAt := time.Date(2024, time.June, 1, 15, 0, 0, 0, time.UTC)
	var locked error = &ChatLockedError{UnlockAt: unlockAt}
	if !errors.Is(locked, ErrChatLocked) {
		t.Fatalf("expected ChatLockedError to match ErrChatLocked")
	}
	if !strings.Contains(locked.Error(), "2024-06-01T15:00:00Z") {
		t.Fatalf("expected unlock instant in message, got %q", locked.Error())
	}

	var penalized error = fmt.Errorf("submit: %w", &PenalizedError{Until: unlockAt})
	if !errors.Is(penalized, ErrPenalized) {
		t.Fatalf("expected wrapped PenalizedError to match ErrPenalized")
	}

	var slotsErr *InsufficientSlotsError
	if !errors.As(fmt.Errorf("wrap: %w", &InsufficientSlotsError{Have: 1, Required: 3}), &slotsErr) {
		t.Fatalf("expected errors.As to find InsufficientSlotsError")
	}
	if slotsErr.Have != 1 || slotsErr.Required != 3 {
		t.Fatalf("unexpected counts %+v", slotsErr)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ValidationError{FieldErrors: map[string]string{"start": "bad"}}, "validation"},
		{&InsufficientSlotsError{Have: 0, Required: 3}, "insufficient_slots"},
		{ErrPermission, "permission"},
		{fmt.Errorf("wrapped: %w", ErrNotFound), "not_found"},
		{ErrConflict, "conflict"},
		{ErrPaymentRequired, "payment_required"},
		{&ChatLockedError{}, "chat_locked"},
		{&PenalizedError{}, "penalized"},
		{errors.New("boom"), "unexpected"},
	}

	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
