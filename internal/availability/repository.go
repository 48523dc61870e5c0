package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/timeutil"
)

// Repository contains all storage interactions needed by the service.
// Callers serialize writes per provider; implementations need not detect
// overlaps themselves.
type Repository interface {
	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	// ListSlots returns the provider's slots with from <= date <= to,
	// ordered by date then start.
	ListSlots(ctx context.Context, providerID uuid.UUID, from, to timeutil.Date) ([]Slot, error)

	// InsertSlots stores all slots or none.
	InsertSlots(ctx context.Context, slots []Slot) error
	UpdateSlot(ctx context.Context, slot Slot) error
	DeleteSlot(ctx context.Context, id, providerID uuid.UUID) error
	DeleteSlotsForDate(ctx context.Context, providerID uuid.UUID, date timeutil.Date) (int64, error)

	UpsertBlock(ctx context.Context, b Block) error
	DeleteBlock(ctx context.Context, providerID uuid.UUID, date timeutil.Date) error
	IsBlocked(ctx context.Context, providerID uuid.UUID, date timeutil.Date) (bool, error)
	ListBlocks(ctx context.Context, providerID uuid.UUID, from, to timeutil.Date) ([]Block, error)
}
