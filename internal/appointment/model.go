package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/catalog"
)

type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

func ParseStatus(s string) (AppointmentStatus, bool) {
	st := AppointmentStatus(s)
	_, ok := transitions[st]
	return st, ok
}

type CancellationType string

const (
	CancelledByClient   CancellationType = "client"
	CancelledByProvider CancellationType = "provider"
)

type Confirmation struct {
	ConfirmedBy uuid.UUID
	ConfirmedAt time.Time
}

type Cancellation struct {
	CancelledBy uuid.UUID
	CancelledAt time.Time
	Reason      string
	Type        CancellationType
}

// Appointment reserves [ScheduledAt, EndsAt()) of a provider's time. Price
// and duration are copied from the service at booking time.
type Appointment struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	ProviderID      uuid.UUID
	ServiceID       uuid.UUID
	ServiceName     string
	ScheduledAt     time.Time
	DurationMinutes int
	Price           int64
	Status          AppointmentStatus
	Code            string
	Notes           *string
	Confirmation    *Confirmation
	Cancellation    *Cancellation
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Blocking reports whether a occupies its provider's time.
func (a Appointment) Blocking() bool {
	return a.Status != StatusCancelled && a.Status != StatusNoShow
}

// Summary is what callers receive. Code is only populated for the client
// who owns the appointment.
type Summary struct {
	Appointment
	Provider catalog.Provider
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type CreateRequest struct {
	ServiceID   uuid.UUID
	ScheduledAt time.Time
	Notes       *string
}

type ListFilter struct {
	Status *AppointmentStatus
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

type Page struct {
	Items      []Summary
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// ConflictError names the interval an attempted booking collided with.
type ConflictError struct {
	ProviderID uuid.UUID
	Start      time.Time
	End        time.Time
}

func (e *ConflictError) Error() string {
	return "provider " + e.ProviderID.String() + " is booked from " +
		e.Start.UTC().Format(time.RFC3339) + " to " + e.End.UTC().Format(time.RFC3339)
}
