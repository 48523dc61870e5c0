package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/db"
	"github.com/hackgods/booking-engine/internal/identity"
)

var appointmentCols = []string{
	"id", "client_id", "provider_id", "service_id", "service_name",
	"scheduled_at", "duration_minutes", "price", "status", "code", "notes",
	"created_at", "updated_at",
	"confirmed_by", "confirmed_at",
	"cancelled_by", "cancelled_at", "reason", "cancellation_type",
}

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock, db.NewTxManager(mock, nil)), mock
}

func sampleAppointment() Appointment {
	return Appointment{
		ID:              uuid.New(),
		ClientID:        uuid.New(),
		ProviderID:      uuid.New(),
		ServiceID:       uuid.New(),
		ServiceName:     "Balayage",
		ScheduledAt:     t0.Add(48 * time.Hour),
		DurationMinutes: 180,
		Price:           15000,
		Status:          StatusPending,
		Code:            "0420",
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
}

func insertArgs(a Appointment) []any {
	return []any{
		a.ID, a.ClientID, a.ProviderID, a.ServiceID, a.ServiceName,
		a.ScheduledAt, a.EndsAt(), a.DurationMinutes, a.Price, string(a.Status), a.Code, a.Notes,
		a.CreatedAt, a.UpdatedAt,
	}
}

func TestPgCreateIfFreeInsertsWhenFree(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(a.ProviderID, a.ScheduledAt, a.EndsAt()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(insertArgs(a)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateIfFree(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateIfFreeReportsConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()
	start, end := a.ScheduledAt.Add(-time.Hour), a.ScheduledAt.Add(30*time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(a.ProviderID, a.ScheduledAt, a.EndsAt()).
		WillReturnRows(pgxmock.NewRows([]string{"scheduled_at", "ends_at"}).AddRow(start, end))
	mock.ExpectRollback()

	err := repo.CreateIfFree(context.Background(), a)
	assert.True(t, errors.Is(err, apperr.ErrSlotConflict), "got %v", err)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, start, conflict.Start)
	assert.Equal(t, end, conflict.End)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateIfFreeMapsExclusionViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(a.ProviderID, a.ScheduledAt, a.EndsAt()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(insertArgs(a)...).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	err := repo.CreateIfFree(context.Background(), a)
	assert.True(t, errors.Is(err, apperr.ErrSlotConflict), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGet(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()
	confirmedAt := t0.Add(time.Hour)
	var (
		notes        *string
		cancelledBy  *uuid.UUID
		cancelledAt  *time.Time
		reason, kind *string
	)

	mock.ExpectQuery("FROM appointments a").
		WithArgs(a.ID).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(
			a.ID, a.ClientID, a.ProviderID, a.ServiceID, a.ServiceName,
			a.ScheduledAt, a.DurationMinutes, a.Price, "confirmed", a.Code, notes,
			a.CreatedAt, a.UpdatedAt,
			&a.ProviderID, &confirmedAt,
			cancelledBy, cancelledAt, reason, kind,
		))

	got, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
	require.NotNil(t, got.Confirmation)
	assert.Equal(t, a.ProviderID, got.Confirmation.ConfirmedBy)
	assert.Nil(t, got.Cancellation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("FROM appointments a").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTransitionWritesCancellation(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()
	a.Status = StatusCancelled
	a.UpdatedAt = t0.Add(time.Hour)
	a.Cancellation = &Cancellation{CancelledBy: a.ClientID, CancelledAt: a.UpdatedAt, Reason: "moving", Type: CancelledByClient}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(a.ID, "confirmed", "cancelled", a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO appointment_cancellations").
		WithArgs(a.ID, a.ClientID, a.UpdatedAt, "moving", "client").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Transition(context.Background(), a, StatusConfirmed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTransitionLosesRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()
	a.Status = StatusConfirmed

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(a.ID, "pending", "confirmed", a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), a, StatusPending)
	assert.ErrorIs(t, err, errStatusChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListScopesByActor(t *testing.T) {
	repo, mock := newMockRepo(t)
	provider := identity.Provider(uuid.New())
	status := StatusPending

	mock.ExpectQuery("SELECT count").
		WithArgs(provider.ID, "pending").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY a.scheduled_at ASC").
		WithArgs(provider.ID, "pending", 10, 10).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	items, total, err := repo.List(context.Background(), provider, ListFilter{Status: &status, Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateCodeOnlyWhileOpen(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	at := t0.Add(time.Hour)

	mock.ExpectExec(`UPDATE appointments\s+SET code = \$2,\s+updated_at = \$3\s+WHERE id = \$1 AND status IN \('pending', 'confirmed'\)`).
		WithArgs(id, "4321", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, "8765", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateCode(context.Background(), id, "4321", at))

	err := repo.UpdateCode(context.Background(), id, "8765", at)
	assert.ErrorIs(t, err, errStatusChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}
