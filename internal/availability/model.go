package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/timeutil"
)

// Slot is a provider-declared interval on one calendar date. Slots with
// IsAvailable=false document explicit unavailability inside a day.
type Slot struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	Date        timeutil.Date
	Start       timeutil.TimeOfDay
	End         timeutil.TimeOfDay
	IsAvailable bool
	Reason      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SlotInput struct {
	Date        timeutil.Date
	Start       timeutil.TimeOfDay
	End         timeutil.TimeOfDay
	IsAvailable bool
	Reason      *string
}

// SlotPatch carries the fields of an update; nil fields are left as is.
type SlotPatch struct {
	Date        *timeutil.Date
	Start       *timeutil.TimeOfDay
	End         *timeutil.TimeOfDay
	IsAvailable *bool
	Reason      *string
}

// Block marks a whole date unavailable regardless of its slots.
type Block struct {
	ProviderID uuid.UUID
	Date       timeutil.Date
	Reason     *string
	CreatedAt  time.Time
}

type Window struct {
	Start timeutil.TimeOfDay
	End   timeutil.TimeOfDay
}

// WeeklyTemplate expands into one available slot per window for every
// matching weekday in [From, To].
type WeeklyTemplate struct {
	From    timeutil.Date
	To      timeutil.Date
	Windows map[time.Weekday][]Window
	Reason  *string
}

// OverlapError reports the existing slot a write collided with.
type OverlapError struct {
	Conflict Slot
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlaps slot %s on %s from %s to %s",
		e.Conflict.ID, e.Conflict.Date, e.Conflict.Start, e.Conflict.End)
}
