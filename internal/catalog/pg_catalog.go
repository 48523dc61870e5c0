package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/db"
)

type PgCatalog struct {
	db db.DBTX
}

func NewPgCatalog(conn db.DBTX) *PgCatalog {
	return &PgCatalog{db: conn}
}

func (c *PgCatalog) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	var s Service
	err := c.db.QueryRow(ctx, `
		SELECT id, provider_id, name, price, duration_minutes, is_active
		FROM services
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&s.ID, &s.ProviderID, &s.Name, &s.Price, &s.DurationMinutes, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrServiceNotFound, "service %s not found", id)
		}
		return nil, errors.Wrap(err, "load service")
	}
	return &s, nil
}

func (c *PgCatalog) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	var p Provider
	err := c.db.QueryRow(ctx, `
		SELECT id, business_name, city
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.BusinessName, &p.City)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "provider %s not found", id)
		}
		return nil, errors.Wrap(err, "load provider")
	}
	return &p, nil
}
