package catalog

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/apperr"
)

// MemoryCatalog backs the in-memory store driver and tests.
type MemoryCatalog struct {
	mu        sync.RWMutex
	services  map[uuid.UUID]Service
	providers map[uuid.UUID]Provider
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		services:  make(map[uuid.UUID]Service),
		providers: make(map[uuid.UUID]Provider),
	}
}

func (c *MemoryCatalog) PutService(s Service) {
	c.mu.Lock()
	c.services[s.ID] = s
	c.mu.Unlock()
}

func (c *MemoryCatalog) PutProvider(p Provider) {
	c.mu.Lock()
	c.providers[p.ID] = p
	c.mu.Unlock()
}

func (c *MemoryCatalog) GetService(_ context.Context, id uuid.UUID) (*Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.services[id]
	if !ok {
		return nil, apperr.New(apperr.ErrServiceNotFound, "service %s not found", id)
	}
	return &s, nil
}

func (c *MemoryCatalog) GetProvider(_ context.Context, id uuid.UUID) (*Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "provider %s not found", id)
	}
	return &p, nil
}
