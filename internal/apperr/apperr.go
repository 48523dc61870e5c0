// Package apperr declares the error kinds surfaced by the booking engine.
//
// Domain code builds a descriptive error and marks it with one of the kinds
// below; callers test the kind with errors.Is and never parse messages.
package apperr

import (
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
)

var (
	ErrNotFound                 = cr.New("not found")
	ErrInvalidInterval          = cr.New("invalid interval")
	ErrPastDate                 = cr.New("date is in the past")
	ErrPastSchedule             = cr.New("scheduled start is in the past")
	ErrOverlapConflict          = cr.New("overlapping availability slot")
	ErrSlotConflict             = cr.New("time slot already booked")
	ErrInvalidTransition        = cr.New("invalid status transition")
	ErrMissingReason            = cr.New("cancellation reason required")
	ErrCancellationWindowClosed = cr.New("cancellation window closed")
	ErrInvalidCode              = cr.New("invalid confirmation code")
	ErrAlreadyTerminal          = cr.New("appointment already closed")
	ErrServiceNotFound          = cr.New("service not found")
	ErrForbidden                = cr.New("forbidden")
	ErrOutsideAvailability      = cr.New("outside provider availability")
	ErrActorSuspended           = cr.New("actor suspended")
	ErrInvalidArgument          = cr.New("invalid argument")
	ErrBusy                     = cr.New("resource busy")
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrInvalidInterval, "invalid_interval"},
	{ErrPastDate, "past_date"},
	{ErrPastSchedule, "past_schedule"},
	{ErrOverlapConflict, "overlap_conflict"},
	{ErrSlotConflict, "slot_conflict"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrMissingReason, "missing_reason"},
	{ErrCancellationWindowClosed, "cancellation_window_closed"},
	{ErrInvalidCode, "invalid_code"},
	{ErrAlreadyTerminal, "already_terminal"},
	{ErrServiceNotFound, "service_not_found"},
	{ErrForbidden, "forbidden"},
	{ErrOutsideAvailability, "outside_availability"},
	{ErrActorSuspended, "actor_suspended"},
	{ErrInvalidArgument, "invalid_argument"},
	{ErrBusy, "busy"},
}

// New returns a formatted error marked with kind.
func New(kind error, format string, args ...any) error {
	return cr.Mark(cr.Newf(format, args...), kind)
}

func Mark(err error, kind error) error {
	if err == nil {
		return kind
	}
	return cr.Mark(err, kind)
}

// Kind returns the first kind err is marked with, or nil for
// unclassified (internal) errors.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if cr.Is(err, k.err) {
			return k.err
		}
	}
	return nil
}

// Code is the snake_case identifier of err's kind, "internal_error" when
// unclassified.
func Code(err error) string {
	if err != nil {
		for _, k := range kinds {
			if cr.Is(err, k.err) {
				return k.code
			}
		}
	}
	return "internal_error"
}

func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	lines := strings.Split(fmt.Sprintf("%+v", err), "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
