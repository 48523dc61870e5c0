package reputation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/db"
	"github.com/hackgods/booking-engine/internal/identity"
)

type PgRepository struct {
	db  db.DBTX
	txm *db.TxManager
}

func NewPgRepository(pool db.Pool, txm *db.TxManager) *PgRepository {
	return &PgRepository{db: pool, txm: txm}
}

const recordColumns = `actor_id, role, score,
	completed_count, no_show_count, absent_count, cancelled_late_count, late_count,
	disputes_won_count, disputes_lost_count, total_appointments,
	is_suspended, suspended_until, suspension_reason, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec  Record
		role string
	)
	err := row.Scan(
		&rec.ActorID,
		&role,
		&rec.Score,
		&rec.CompletedCount,
		&rec.NoShowCount,
		&rec.AbsentCount,
		&rec.CancelledLateCount,
		&rec.LateCount,
		&rec.DisputesWonCount,
		&rec.DisputesLostCount,
		&rec.TotalAppointments,
		&rec.IsSuspended,
		&rec.SuspendedUntil,
		&rec.SuspensionReason,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "no reliability record")
		}
		return nil, err
	}
	rec.Role = identity.Role(role)
	return &rec, nil
}

func (r *PgRepository) Get(ctx context.Context, actor identity.Actor) (*Record, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM reliability_records
		WHERE role = $1 AND actor_id = $2
	`, string(actor.Role), actor.ID)
	return scanRecord(row)
}

func (r *PgRepository) Update(ctx context.Context, actor identity.Actor, now time.Time, dedupKey string, fn UpdateFunc) (*Record, bool, error) {
	var (
		out     *Record
		applied bool
	)
	err := r.txm.Run(ctx, func(ctx context.Context, tx db.DBTX) error {
		out, applied = nil, false

		if dedupKey != "" {
			tag, err := tx.Exec(ctx, `
				INSERT INTO reputation_events (dedup_key, role, actor_id, created_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (dedup_key) DO NOTHING
			`, dedupKey, string(actor.Role), actor.ID, now)
			if err != nil {
				return errors.Wrap(err, "record reputation event")
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO reliability_records (actor_id, role, score, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (role, actor_id) DO NOTHING
		`, actor.ID, string(actor.Role), InitialScore, now)
		if err != nil {
			return errors.Wrap(err, "ensure reliability record")
		}

		rec, err := scanRecord(tx.QueryRow(ctx, `
			SELECT `+recordColumns+`
			FROM reliability_records
			WHERE role = $1 AND actor_id = $2
			FOR UPDATE
		`, string(actor.Role), actor.ID))
		if err != nil {
			return errors.Wrap(err, "lock reliability record")
		}

		changed, err := fn(rec)
		if err != nil {
			return err
		}
		if changed {
			_, err = tx.Exec(ctx, `
				UPDATE reliability_records
				SET score = $3,
				    completed_count = $4,
				    no_show_count = $5,
				    absent_count = $6,
				    cancelled_late_count = $7,
				    late_count = $8,
				    disputes_won_count = $9,
				    disputes_lost_count = $10,
				    total_appointments = $11,
				    is_suspended = $12,
				    suspended_until = $13,
				    suspension_reason = $14,
				    updated_at = $15
				WHERE role = $1 AND actor_id = $2
			`, string(rec.Role), rec.ActorID, rec.Score,
				rec.CompletedCount, rec.NoShowCount, rec.AbsentCount, rec.CancelledLateCount, rec.LateCount,
				rec.DisputesWonCount, rec.DisputesLostCount, rec.TotalAppointments,
				rec.IsSuspended, rec.SuspendedUntil, rec.SuspensionReason, rec.UpdatedAt)
			if err != nil {
				return errors.Wrap(err, "update reliability record")
			}
		}

		out, applied = rec, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, applied, nil
}
