package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/identity"
)

// errStatusChanged is returned by Transition when the stored status no
// longer matches the expected one.
var errStatusChanged = apperr.New(apperr.ErrInvalidTransition, "appointment status changed concurrently")

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// CreateIfFree inserts a unless a blocking appointment of the same
	// provider overlaps it. The check and the insert are atomic.
	CreateIfFree(ctx context.Context, a Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Transition stores a (its status, confirmation and cancellation) if
	// the stored status is still from.
	Transition(ctx context.Context, a Appointment, from AppointmentStatus) error
	UpdateCode(ctx context.Context, id uuid.UUID, code string, at time.Time) error

	// List returns one page of the appointments visible to actor and the
	// total number of matches.
	List(ctx context.Context, actor identity.Actor, f ListFilter) ([]Appointment, int, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

func conflictError(providerID uuid.UUID, start, end time.Time) error {
	return apperr.Mark(&ConflictError{ProviderID: providerID, Start: start, End: end}, apperr.ErrSlotConflict)
}
