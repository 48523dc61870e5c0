package catalog

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-engine/internal/apperr"
)

func TestPgCatalogGetService(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := NewPgCatalog(mock)
	id, providerID := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM services").WithArgs(id).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "name", "price", "duration_minutes", "is_active"}).
			AddRow(id, providerID, "Braids", int64(15000), 180, true))

	s, err := c.GetService(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, providerID, s.ProviderID)
	assert.Equal(t, int64(15000), s.Price)
	assert.Equal(t, 180, s.DurationMinutes)

	missing := uuid.New()
	mock.ExpectQuery("FROM services").WithArgs(missing).WillReturnError(pgx.ErrNoRows)
	_, err = c.GetService(context.Background(), missing)
	assert.True(t, errors.Is(err, apperr.ErrServiceNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCatalogGetProvider(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := NewPgCatalog(mock)
	id := uuid.New()

	mock.ExpectQuery("FROM providers").WithArgs(id).WillReturnRows(
		pgxmock.NewRows([]string{"id", "business_name", "city"}).AddRow(id, "Salon Nadia", "Abidjan"))

	p, err := c.GetProvider(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Salon Nadia", p.BusinessName)

	mock.ExpectQuery("FROM providers").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err = c.GetProvider(context.Background(), id)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCatalog(t *testing.T) {
	c := NewMemoryCatalog()
	s := Service{ID: uuid.New(), ProviderID: uuid.New(), Name: "Cut", Price: 5000, DurationMinutes: 30, IsActive: true}
	c.PutService(s)

	got, err := c.GetService(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, *got)

	_, err = c.GetService(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrServiceNotFound))
}
