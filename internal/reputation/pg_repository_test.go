package reputation

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
	"github.com/hackgods/booking-engine/internal/identity"
)

var recordCols = []string{
	"actor_id", "role", "score",
	"completed_count", "no_show_count", "absent_count", "cancelled_late_count", "late_count",
	"disputes_won_count", "disputes_lost_count", "total_appointments",
	"is_suspended", "suspended_until", "suspension_reason", "created_at", "updated_at",
}

func recordRow(actor identity.Actor, score int, ts time.Time) *pgxmock.Rows {
	var (
		until  *time.Time
		reason *string
	)
	return pgxmock.NewRows(recordCols).AddRow(
		actor.ID, string(actor.Role), score,
		0, 0, 0, 0, 0,
		0, 0, 0,
		false, until, reason, ts, ts,
	)
}

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock, db.NewTxManager(mock, nil)), mock
}

func TestPgGetMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	actor := identity.Client(uuid.New())

	mock.ExpectQuery("FROM reliability_records").WithArgs("client", actor.ID).WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), actor)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateLocksAndPersists(t *testing.T) {
	repo, mock := newMockRepo(t)
	actor := identity.Provider(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reputation_events").
		WithArgs("appt:provider:completed", "provider", actor.ID, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO reliability_records").
		WithArgs(actor.ID, "provider", InitialScore, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("provider", actor.ID).
		WillReturnRows(recordRow(actor, 50, now))
	mock.ExpectExec("UPDATE reliability_records").
		WithArgs("provider", actor.ID, 60,
			1, 0, 0, 0, 0,
			0, 0, 1,
			false, pgxmock.AnyArg(), pgxmock.AnyArg(), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	rec, applied, err := repo.Update(context.Background(), actor, now, "appt:provider:completed", func(rec *Record) (bool, error) {
		_, err := Apply(rec, EventCompleted, now)
		return true, err
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 60, rec.Score)
	assert.Equal(t, 1, rec.CompletedCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateSkipsReplayedEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	actor := identity.Client(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reputation_events").
		WithArgs("dup", "client", actor.ID, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	called := false
	_, applied, err := repo.Update(context.Background(), actor, now, "dup", func(*Record) (bool, error) {
		called = true
		return true, nil
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateWithoutChangeSkipsWrite(t *testing.T) {
	repo, mock := newMockRepo(t)
	actor := identity.Client(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reliability_records").
		WithArgs(actor.ID, "client", InitialScore, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("client", actor.ID).
		WillReturnRows(recordRow(actor, 42, now))
	mock.ExpectCommit()

	rec, applied, err := repo.Update(context.Background(), actor, now, "", func(*Record) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 42, rec.Score)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdatePersistsNegativeScore(t *testing.T) {
	repo, mock := newMockRepo(t)
	actor := identity.Client(uuid.New())
	until := now.Add(SuspensionPeriod)
	reason := ReasonLowScore

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reputation_events").
		WithArgs("appt:client:no_show", "client", actor.ID, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO reliability_records").
		WithArgs(actor.ID, "client", InitialScore, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("client", actor.ID).
		WillReturnRows(recordRow(actor, 20, now))
	mock.ExpectExec("UPDATE reliability_records").
		WithArgs("client", actor.ID, -10,
			0, 1, 0, 0, 0,
			0, 0, 1,
			true, &until, &reason, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	rec, applied, err := repo.Update(context.Background(), actor, now, "appt:client:no_show", func(rec *Record) (bool, error) {
		_, err := Apply(rec, EventNoShow, now)
		return true, err
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, -10, rec.Score)
	assert.True(t, rec.IsSuspended)
	require.NoError(t, mock.ExpectationsWereMet())
}
