package reputation

import (
	"time"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/identity"
)

var clientPoints = map[Event]int{
	EventCompleted:             10,
	EventCancelledEarly:        -5,
	EventCancelledLateAccepted: -10,
	EventCancelledLateRejected: -15,
	EventNoShow:                -30,
	EventLate15:                -5,
	EventLate30:                -10,
	EventPositiveReview:        2,
	EventDisputeWon:            5,
	EventDisputeLost:           -20,
}

var providerPoints = map[Event]int{
	EventCompleted:             10,
	EventCancelledEarly:        -10,
	EventCancelledLateAccepted: -15,
	EventCancelledLateRejected: -25,
	EventNoShow:                0, // counted, not scored: the client did not turn up
	EventAbsent:                -50,
	EventLate15:                -10,
	EventLate30:                -20,
	EventPositiveReview:        5,
	EventReviewResponse:        1,
	EventDisputeWon:            5,
	EventDisputeLost:           -30,
}

// Points returns the signed delta of ev for role. Events outside the role's
// table are rejected.
func Points(role identity.Role, ev Event) (int, error) {
	var table map[Event]int
	switch role {
	case identity.RoleClient:
		table = clientPoints
	case identity.RoleProvider:
		table = providerPoints
	default:
		return 0, apperr.New(apperr.ErrInvalidArgument, "role %q has no reputation", role)
	}
	p, ok := table[ev]
	if !ok {
		return 0, apperr.New(apperr.ErrInvalidArgument, "event %q does not apply to %s", ev, role)
	}
	return p, nil
}

func clamp(v int) int {
	return min(max(v, MinScore), MaxScore)
}

// Outcome reports what Apply changed on the suspension state.
type Outcome struct {
	Delta              int
	Suspended          bool
	PermanentSuspended bool
}

// Apply folds ev into rec at now. It is the single place where scores and
// suspensions change.
func Apply(rec *Record, ev Event, now time.Time) (Outcome, error) {
	delta, err := Points(rec.Role, ev)
	if err != nil {
		return Outcome{}, err
	}

	rec.Score = clamp(rec.Score + delta)

	switch ev {
	case EventCompleted:
		rec.CompletedCount++
		rec.TotalAppointments++
	case EventNoShow:
		rec.NoShowCount++
		rec.TotalAppointments++
	case EventAbsent:
		rec.AbsentCount++
		rec.TotalAppointments++
	case EventCancelledLateAccepted, EventCancelledLateRejected:
		rec.CancelledLateCount++
	case EventLate15, EventLate30:
		rec.LateCount++
	case EventDisputeWon:
		rec.DisputesWonCount++
	case EventDisputeLost:
		rec.DisputesLostCount++
	}

	out := Outcome{Delta: delta}
	// A good event never lifts an existing suspension; only expiry does.
	switch {
	case rec.SevereIncidents() >= SevereIncidentLimit:
		reason := ReasonSevereIncidents
		rec.IsSuspended = true
		rec.SuspendedUntil = nil
		rec.SuspensionReason = &reason
		out.Suspended, out.PermanentSuspended = true, true
	case rec.Score < SuspensionThreshold:
		reason := ReasonLowScore
		until := now.Add(SuspensionPeriod)
		rec.IsSuspended = true
		rec.SuspendedUntil = &until
		rec.SuspensionReason = &reason
		out.Suspended = true
	}

	rec.UpdatedAt = now
	return out, nil
}

// clearExpired lifts a time-boxed suspension whose expiry has passed.
// It reports whether rec changed.
func clearExpired(rec *Record, now time.Time) bool {
	if !rec.IsSuspended || rec.SuspendedUntil == nil || rec.SuspendedUntil.After(now) {
		return false
	}
	rec.IsSuspended = false
	rec.SuspendedUntil = nil
	rec.SuspensionReason = nil
	rec.UpdatedAt = now
	return true
}

type BadgeLevel string

const (
	BadgeExcellent  BadgeLevel = "excellent"
	BadgeNormal     BadgeLevel = "normal"
	BadgeWarning    BadgeLevel = "warning"
	BadgeRestricted BadgeLevel = "restricted"
)

type Badge struct {
	Level BadgeLevel `json:"level"`
	Label string     `json:"label"`
}

// BadgeFor derives the display badge of score. It has no side effects.
func BadgeFor(role identity.Role, score int) Badge {
	switch {
	case score >= 70:
		if role == identity.RoleProvider {
			return Badge{Level: BadgeExcellent, Label: "Reliable pro ✓"}
		}
		return Badge{Level: BadgeExcellent, Label: "Reliable client ✓"}
	case score >= 50:
		return Badge{Level: BadgeNormal, Label: ""}
	case score >= 30:
		return Badge{Level: BadgeWarning, Label: "Watch reliability"}
	default:
		return Badge{Level: BadgeRestricted, Label: "Restricted"}
	}
}
