package availability

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/db"
	"github.com/hackgods/booking-engine/internal/timeutil"
)

var slotCols = []string{"id", "provider_id", "slot_date", "start_minute", "end_minute", "is_available", "reason", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock, db.NewTxManager(mock, nil)), mock
}

func TestPgListSlots(t *testing.T) {
	repo, mock := newMockRepo(t)
	provider := uuid.New()
	date := timeutil.NewDate(2025, 6, 3)
	now := time.Now()
	var reason *string

	mock.ExpectQuery("FROM availability_slots").
		WithArgs(provider, date.Time(), date.Time()).
		WillReturnRows(pgxmock.NewRows(slotCols).
			AddRow(uuid.New(), provider, date.Time(), 540, 600, true, reason, now, now).
			AddRow(uuid.New(), provider, date.Time(), 600, 660, false, reason, now, now))

	slots, err := repo.ListSlots(context.Background(), provider, date, date)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, date, slots[0].Date)
	assert.Equal(t, timeutil.MustTimeOfDay("09:00"), slots[0].Start)
	assert.False(t, slots[1].IsAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetSlotNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("FROM availability_slots").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetSlot(context.Background(), id)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func slotArgs(s Slot) []any {
	return []any{s.ID, s.ProviderID, s.Date.Time(), int(s.Start), int(s.End), s.IsAvailable, s.Reason, s.CreatedAt, s.UpdatedAt}
}

func TestPgInsertSlotsIsTransactional(t *testing.T) {
	repo, mock := newMockRepo(t)
	provider := uuid.New()
	now := time.Now()
	slots := []Slot{
		{ID: uuid.New(), ProviderID: provider, Date: timeutil.NewDate(2025, 6, 3), Start: 540, End: 600, IsAvailable: true, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.New(), ProviderID: provider, Date: timeutil.NewDate(2025, 6, 4), Start: 540, End: 600, IsAvailable: true, CreatedAt: now, UpdatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO availability_slots").
		WithArgs(slotArgs(slots[0])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO availability_slots").
		WithArgs(slotArgs(slots[1])...).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.InsertSlots(context.Background(), slots)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateSlotMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	s := Slot{ID: uuid.New(), ProviderID: uuid.New(), Date: timeutil.NewDate(2025, 6, 3), Start: 540, End: 600}

	mock.ExpectExec("UPDATE availability_slots").
		WithArgs(s.ID, s.ProviderID, s.Date.Time(), 540, 600, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateSlot(context.Background(), s)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgIsBlocked(t *testing.T) {
	repo, mock := newMockRepo(t)
	provider := uuid.New()
	date := timeutil.NewDate(2025, 6, 3)

	mock.ExpectQuery("FROM availability_blocks").WithArgs(provider, date.Time()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	blocked, err := repo.IsBlocked(context.Background(), provider, date)
	require.NoError(t, err)
	assert.True(t, blocked)

	mock.ExpectQuery("FROM availability_blocks").WithArgs(provider, date.Time()).WillReturnError(pgx.ErrNoRows)
	blocked, err = repo.IsBlocked(context.Background(), provider, date)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, mock.ExpectationsWereMet())
}
