package appointment

import "github.com/hackgods/booking-engine/internal/apperr"

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func IsTerminal(s AppointmentStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// ValidateTransition fails with ErrInvalidTransition for any move outside
// the table. Who may perform a move is checked by the caller.
func ValidateTransition(from, to AppointmentStatus) error {
	if !CanTransition(from, to) {
		return apperr.New(apperr.ErrInvalidTransition, "cannot move appointment from %s to %s", from, to)
	}
	return nil
}
