package reputation

import (
	"context"
	"sync"
	"time"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/identity"
)

type MemoryRepository struct {
	mu      sync.Mutex
	records map[identity.Actor]Record
	seen    map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[identity.Actor]Record),
		seen:    make(map[string]struct{}),
	}
}

func (r *MemoryRepository) Get(_ context.Context, actor identity.Actor) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[actor]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "no reliability record for %s", actor)
	}
	return cloneRecord(rec), nil
}

func (r *MemoryRepository) Update(_ context.Context, actor identity.Actor, now time.Time, dedupKey string, fn UpdateFunc) (*Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dedupKey != "" {
		if _, dup := r.seen[dedupKey]; dup {
			return nil, false, nil
		}
	}

	rec, ok := r.records[actor]
	if !ok {
		rec = NewRecord(actor, now)
	}
	working := cloneRecord(rec)
	changed, err := fn(working)
	if err != nil {
		return nil, false, err
	}
	if changed || !ok {
		r.records[actor] = *cloneRecord(*working)
	}
	if dedupKey != "" {
		r.seen[dedupKey] = struct{}{}
	}
	return working, true, nil
}

func cloneRecord(rec Record) *Record {
	out := rec
	if rec.SuspendedUntil != nil {
		t := *rec.SuspendedUntil
		out.SuspendedUntil = &t
	}
	if rec.SuspensionReason != nil {
		s := *rec.SuspensionReason
		out.SuspensionReason = &s
	}
	return &out
}
