package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/identity"
	"github.com/hackgods/booking-engine/internal/timeutil"
)

// MemoryRepository keeps appointments in process. One mutex guards the
// whole set, which makes CreateIfFree atomic on its own.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]Appointment
	events []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) CreateIfFree(_ context.Context, a Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.byID {
		if other.ProviderID != a.ProviderID || !other.Blocking() {
			continue
		}
		if timeutil.OverlapsTime(other.ScheduledAt, other.EndsAt(), a.ScheduledAt, a.EndsAt()) {
			return conflictError(a.ProviderID, other.ScheduledAt, other.EndsAt())
		}
	}
	r.byID[a.ID] = cloneAppointment(a)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "appointment not found")
	}
	out := cloneAppointment(a)
	return &out, nil
}

func (r *MemoryRepository) Transition(_ context.Context, a Appointment, from AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[a.ID]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "appointment not found")
	}
	if cur.Status != from {
		return errStatusChanged
	}
	cur.Status = a.Status
	cur.UpdatedAt = a.UpdatedAt
	if a.Status == StatusConfirmed && a.Confirmation != nil {
		c := *a.Confirmation
		cur.Confirmation = &c
	}
	if a.Status == StatusCancelled && a.Cancellation != nil {
		c := *a.Cancellation
		cur.Cancellation = &c
	}
	r.byID[a.ID] = cur
	return nil
}

func (r *MemoryRepository) UpdateCode(_ context.Context, id uuid.UUID, code string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "appointment %s not found", id)
	}
	if cur.Status != StatusPending && cur.Status != StatusConfirmed {
		return errStatusChanged
	}
	cur.Code = code
	cur.UpdatedAt = at
	r.byID[id] = cur
	return nil
}

func (r *MemoryRepository) List(_ context.Context, actor identity.Actor, f ListFilter) ([]Appointment, int, error) {
	r.mu.RLock()
	var matched []Appointment
	for _, a := range r.byID {
		if actor.Role == identity.RoleClient && a.ClientID != actor.ID {
			continue
		}
		if actor.Role == identity.RoleProvider && a.ProviderID != actor.ID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.From != nil && a.ScheduledAt.Before(*f.From) {
			continue
		}
		if f.To != nil && a.ScheduledAt.After(*f.To) {
			continue
		}
		matched = append(matched, cloneAppointment(a))
	}
	r.mu.RUnlock()

	asc := actor.Role == identity.RoleProvider
	sort.Slice(matched, func(i, j int) bool {
		if asc {
			return matched[i].ScheduledAt.Before(matched[j].ScheduledAt)
		}
		return matched[i].ScheduledAt.After(matched[j].ScheduledAt)
	})

	total := len(matched)
	offset := (f.Page - 1) * f.Limit
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+f.Limit, total)
	return matched[offset:end], total, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns the audit log of one appointment in insertion order.
func (r *MemoryRepository) Events(id uuid.UUID) []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []EventLog
	for _, ev := range r.events {
		if ev.AppointmentID != nil && *ev.AppointmentID == id {
			out = append(out, ev)
		}
	}
	return out
}

func cloneAppointment(a Appointment) Appointment {
	if a.Confirmation != nil {
		c := *a.Confirmation
		a.Confirmation = &c
	}
	if a.Cancellation != nil {
		c := *a.Cancellation
		a.Cancellation = &c
	}
	if a.Notes != nil {
		n := *a.Notes
		a.Notes = &n
	}
	return a
}
