package reputation

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/identity"
)

type Event string

const (
	EventCompleted             Event = "completed"
	EventCancelledEarly        Event = "cancelled_early"
	EventCancelledLateAccepted Event = "cancelled_late_accepted"
	EventCancelledLateRejected Event = "cancelled_late_rejected"
	EventNoShow                Event = "no_show"
	EventAbsent                Event = "absent"
	EventLate15                Event = "late_15"
	EventLate30                Event = "late_30"
	EventPositiveReview        Event = "positive_review"
	EventReviewResponse        Event = "review_response"
	EventDisputeWon            Event = "dispute_won"
	EventDisputeLost           Event = "dispute_lost"
)

const (
	InitialScore = 50
	MinScore     = -100
	MaxScore     = 100

	// SevereIncidentLimit is the incident count that triggers a permanent
	// suspension.
	SevereIncidentLimit = 3
	// SuspensionThreshold is the score below which an actor is suspended
	// for SuspensionPeriod.
	SuspensionThreshold = 0
	SuspensionPeriod    = 7 * 24 * time.Hour

	ReasonSevereIncidents = "too many severe incidents"
	ReasonLowScore        = "score below threshold"
)

// Record is the reliability state of one client or provider.
type Record struct {
	ActorID uuid.UUID
	Role    identity.Role
	Score   int

	CompletedCount     int
	NoShowCount        int
	AbsentCount        int
	CancelledLateCount int
	LateCount          int
	DisputesWonCount   int
	DisputesLostCount  int
	TotalAppointments  int

	IsSuspended      bool
	SuspendedUntil   *time.Time // nil with IsSuspended means permanent
	SuspensionReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewRecord(actor identity.Actor, now time.Time) Record {
	return Record{
		ActorID:   actor.ID,
		Role:      actor.Role,
		Score:     InitialScore,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SevereIncidents counts no-shows (clients) or absences (providers) plus
// lost disputes.
func (r Record) SevereIncidents() int {
	if r.Role == identity.RoleProvider {
		return r.AbsentCount + r.DisputesLostCount
	}
	return r.NoShowCount + r.DisputesLostCount
}

func (r Record) PermanentlySuspended() bool {
	return r.IsSuspended && r.SuspendedUntil == nil
}

// Projection is the read-only view shown to other parts of the platform.
type Projection struct {
	Score       int   `json:"score"`
	Badge       Badge `json:"badge"`
	IsSuspended bool  `json:"is_suspended"`
}
