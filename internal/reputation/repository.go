package reputation

import (
	"context"
	"time"

	"github.com/hackgods/booking-engine/internal/identity"
)

// UpdateFunc mutates rec in place and reports whether it changed.
type UpdateFunc func(rec *Record) (bool, error)

// Repository stores reliability records. Update is the only write path:
// it serializes concurrent updates for one actor, creating the record with
// the initial score on first use.
type Repository interface {
	// Get fails with apperr.ErrNotFound when the actor has no record yet.
	Get(ctx context.Context, actor identity.Actor) (*Record, error)

	// Update runs fn on the actor's record and persists the result. When
	// dedupKey is non-empty and was seen before, fn is not called and
	// applied is false.
	Update(ctx context.Context, actor identity.Actor, now time.Time, dedupKey string, fn UpdateFunc) (rec *Record, applied bool, err error)
}
