// Package catalog is the read-only view of services and providers the
// booking engine consumes. Catalog CRUD lives elsewhere.
package catalog

//go:generate mockgen -source=catalog.go -destination=mock_catalog.go -package=catalog

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	Name            string
	Price           int64 // minor currency units
	DurationMinutes int
	IsActive        bool
}

// Provider is the display information attached to appointment summaries.
type Provider struct {
	ID           uuid.UUID
	BusinessName string
	City         string
}

// Catalog resolves services and providers. Missing services yield an error
// marked apperr.ErrServiceNotFound, missing providers apperr.ErrNotFound.
type Catalog interface {
	GetService(ctx context.Context, id uuid.UUID) (*Service, error)
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)
}
