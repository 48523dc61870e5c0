package availability

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/timeutil"
)

type blockKey struct {
	provider uuid.UUID
	date     timeutil.Date
}

type MemoryRepository struct {
	mu     sync.RWMutex
	slots  map[uuid.UUID]Slot
	blocks map[blockKey]Block
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		slots:  make(map[uuid.UUID]Slot),
		blocks: make(map[blockKey]Block),
	}
}

func (r *MemoryRepository) GetSlot(_ context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "slot %s not found", id)
	}
	return &s, nil
}

func (r *MemoryRepository) ListSlots(_ context.Context, providerID uuid.UUID, from, to timeutil.Date) ([]Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Slot
	for _, s := range r.slots {
		if s.ProviderID == providerID && !s.Date.Before(from) && !s.Date.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (r *MemoryRepository) InsertSlots(_ context.Context, slots []Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range slots {
		if _, dup := r.slots[s.ID]; dup {
			return apperr.New(apperr.ErrInvalidArgument, "slot %s already exists", s.ID)
		}
	}
	for _, s := range slots {
		r.slots[s.ID] = s
	}
	return nil
}

func (r *MemoryRepository) UpdateSlot(_ context.Context, s Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.slots[s.ID]
	if !ok || cur.ProviderID != s.ProviderID {
		return apperr.New(apperr.ErrNotFound, "slot %s not found", s.ID)
	}
	s.CreatedAt = cur.CreatedAt
	r.slots[s.ID] = s
	return nil
}

func (r *MemoryRepository) DeleteSlot(_ context.Context, id, providerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[id]; ok && s.ProviderID == providerID {
		delete(r.slots, id)
	}
	return nil
}

func (r *MemoryRepository) DeleteSlotsForDate(_ context.Context, providerID uuid.UUID, date timeutil.Date) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.slots {
		if s.ProviderID == providerID && s.Date == date {
			delete(r.slots, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) UpsertBlock(_ context.Context, b Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := blockKey{b.ProviderID, b.Date}
	if cur, ok := r.blocks[k]; ok {
		b.CreatedAt = cur.CreatedAt
	}
	r.blocks[k] = b
	return nil
}

func (r *MemoryRepository) DeleteBlock(_ context.Context, providerID uuid.UUID, date timeutil.Date) error {
	r.mu.Lock()
	delete(r.blocks, blockKey{providerID, date})
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) IsBlocked(_ context.Context, providerID uuid.UUID, date timeutil.Date) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.blocks[blockKey{providerID, date}]
	return ok, nil
}

func (r *MemoryRepository) ListBlocks(_ context.Context, providerID uuid.UUID, from, to timeutil.Date) ([]Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Block
	for k, b := range r.blocks {
		if k.provider == providerID && !k.date.Before(from) && !k.date.After(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
