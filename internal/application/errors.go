package application

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPermission is returned when the acting user is not a participant of the entity.
	ErrPermission = errors.New("application: permission denied")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned for illegal state transitions and lost concurrent updates.
	ErrConflict = errors.New("application: conflict")
	// ErrPaymentRequired is returned when a booking is confirmed without a completed payment.
	ErrPaymentRequired = errors.New("application: payment required")
	// ErrChatLocked is returned when chatting outside the unlock window.
	ErrChatLocked = errors.New("application: chat locked")
	// ErrPenalized is returned when a penalized user tries to submit availability.
	ErrPenalized = errors.New("application: penalized")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// InsufficientSlotsError reports a submission below the minimum slot count.
type InsufficientSlotsError struct {
	Have     int
	Required int
}

func (e *InsufficientSlotsError) Error() string {
	return fmt.Sprintf("at least %d availability slots are required, have %d", e.Required, e.Have)
}

// ChatLockedError carries the instant at which chat opens.
type ChatLockedError struct {
	UnlockAt time.Time
}

func (e *ChatLockedError) Error() string {
	return "chat is locked until " + e.UnlockAt.UTC().Format(time.RFC3339)
}

// Is lets errors.Is match ErrChatLocked.
func (e *ChatLockedError) Is(target error) bool {
	return target == ErrChatLocked
}

// PenalizedError carries the end of the actor's penalty.
type PenalizedError struct {
	Until time.Time
}

func (e *PenalizedError) Error() string {
	return "availability submission is blocked until " + e.Until.UTC().Format(time.RFC3339)
}

// Is lets errors.Is match ErrPenalized.
func (e *PenalizedError) Is(target error) bool {
	return target == ErrPenalized
}
