package scheduling

import (
	"context"
	"errors"
)

// Sentinel errors returned by the booking engine. Callers compare with errors.Is;
// returned errors wrap these with request detail.
var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrSlotUnavailable        = errors.New("slot unavailable")
	ErrSlotConflict           = errors.New("slot conflict")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrBusy                   = errors.New("schedule busy")
)

// Retryable reports whether the same request may succeed if resubmitted.
func Retryable(err error) bool {
	return errors.Is(err, ErrSlotConflict) || errors.Is(err, ErrBusy)
}

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal_error"
	}
}
