package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
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

const selectAppointment = `
	SELECT a.id, a.client_id, a.provider_id, a.service_id, a.service_name,
	       a.scheduled_at, a.duration_minutes, a.price, a.status, a.code, a.notes,
	       a.created_at, a.updated_at,
	       c.confirmed_by, c.confirmed_at,
	       x.cancelled_by, x.cancelled_at, x.reason, x.cancellation_type
	FROM appointments a
	LEFT JOIN appointment_confirmations c ON c.appointment_id = a.id
	LEFT JOIN appointment_cancellations x ON x.appointment_id = a.id`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a            Appointment
		status       string
		confirmedBy  *uuid.UUID
		confirmedAt  *time.Time
		cancelledBy  *uuid.UUID
		cancelledAt  *time.Time
		cancelReason *string
		cancelType   *string
	)

	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.ProviderID,
		&a.ServiceID,
		&a.ServiceName,
		&a.ScheduledAt,
		&a.DurationMinutes,
		&a.Price,
		&status,
		&a.Code,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&confirmedBy,
		&confirmedAt,
		&cancelledBy,
		&cancelledAt,
		&cancelReason,
		&cancelType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "appointment not found")
		}
		return nil, err
	}

	a.Status = AppointmentStatus(status)
	if confirmedBy != nil && confirmedAt != nil {
		a.Confirmation = &Confirmation{ConfirmedBy: *confirmedBy, ConfirmedAt: *confirmedAt}
	}
	if cancelledBy != nil && cancelledAt != nil {
		c := &Cancellation{CancelledBy: *cancelledBy, CancelledAt: *cancelledAt}
		if cancelReason != nil {
			c.Reason = *cancelReason
		}
		if cancelType != nil {
			c.Type = CancellationType(*cancelType)
		}
		a.Cancellation = c
	}
	return &a, nil
}

// Interface methods

// CreateIfFree locks every blocking appointment of the provider that
// overlaps a before inserting it. The exclusion constraint on appointments
// catches anything that slips past the check.
func (r *PgRepository) CreateIfFree(ctx context.Context, a Appointment) error {
	err := r.txm.Run(ctx, func(ctx context.Context, tx db.DBTX) error {
		var start, end time.Time
		err := tx.QueryRow(ctx, `
			SELECT scheduled_at, ends_at
			FROM appointments
			WHERE provider_id = $1
			  AND status NOT IN ('cancelled', 'no_show')
			  AND scheduled_at < $3
			  AND ends_at > $2
			ORDER BY scheduled_at
			LIMIT 1
			FOR UPDATE
		`, a.ProviderID, a.ScheduledAt, a.EndsAt()).Scan(&start, &end)
		switch {
		case err == nil:
			return conflictError(a.ProviderID, start, end)
		case !errors.Is(err, pgx.ErrNoRows):
			return errors.Wrap(err, "check conflicting appointments")
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO appointments (
				id, client_id, provider_id, service_id, service_name,
				scheduled_at, ends_at, duration_minutes, price, status, code, notes,
				created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, a.ID, a.ClientID, a.ProviderID, a.ServiceID, a.ServiceName,
			a.ScheduledAt, a.EndsAt(), a.DurationMinutes, a.Price, string(a.Status), a.Code, a.Notes,
			a.CreatedAt, a.UpdatedAt)
		if err != nil {
			if db.IsExclusionViolation(err) {
				return apperr.Mark(errors.Wrap(err, "insert appointment"), apperr.ErrSlotConflict)
			}
			return errors.Wrap(err, "insert appointment")
		}
		return nil
	})
	return err
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, selectAppointment+`
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Transition(ctx context.Context, a Appointment, from AppointmentStatus) error {
	return r.txm.Run(ctx, func(ctx context.Context, tx db.DBTX) error {
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $3,
			    updated_at = $4
			WHERE id = $1
			  AND status = $2
		`, a.ID, string(from), string(a.Status), a.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "update appointment status")
		}
		if tag.RowsAffected() == 0 {
			return errStatusChanged
		}

		if c := a.Confirmation; c != nil && a.Status == StatusConfirmed {
			_, err = tx.Exec(ctx, `
				INSERT INTO appointment_confirmations (appointment_id, confirmed_by, confirmed_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (appointment_id) DO UPDATE
				SET confirmed_by = EXCLUDED.confirmed_by,
				    confirmed_at = EXCLUDED.confirmed_at
			`, a.ID, c.ConfirmedBy, c.ConfirmedAt)
			if err != nil {
				return errors.Wrap(err, "upsert confirmation")
			}
		}

		if c := a.Cancellation; c != nil && a.Status == StatusCancelled {
			_, err = tx.Exec(ctx, `
				INSERT INTO appointment_cancellations (appointment_id, cancelled_by, cancelled_at, reason, cancellation_type)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (appointment_id) DO UPDATE
				SET cancelled_by = EXCLUDED.cancelled_by,
				    cancelled_at = EXCLUDED.cancelled_at,
				    reason = EXCLUDED.reason,
				    cancellation_type = EXCLUDED.cancellation_type
			`, a.ID, c.CancelledBy, c.CancelledAt, c.Reason, string(c.Type))
			if err != nil {
				return errors.Wrap(err, "upsert cancellation")
			}
		}
		return nil
	})
}

func (r *PgRepository) UpdateCode(ctx context.Context, id uuid.UUID, code string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET code = $2,
		    updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'confirmed')
	`, id, code, at)
	if err != nil {
		return errors.Wrap(err, "update code")
	}
	if tag.RowsAffected() == 0 {
		return errStatusChanged
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, actor identity.Actor, f ListFilter) ([]Appointment, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	order := "DESC"
	switch actor.Role {
	case identity.RoleClient:
		conds = append(conds, "a.client_id = "+arg(actor.ID))
	case identity.RoleProvider:
		conds = append(conds, "a.provider_id = "+arg(actor.ID))
		order = "ASC"
	}
	if f.Status != nil {
		conds = append(conds, "a.status = "+arg(string(*f.Status)))
	}
	if f.From != nil {
		conds = append(conds, "a.scheduled_at >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "a.scheduled_at <= "+arg(*f.To))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM appointments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count appointments")
	}

	query := selectAppointment + where +
		" ORDER BY a.scheduled_at " + order +
		" LIMIT " + arg(f.Limit) + " OFFSET " + arg((f.Page-1)*f.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list appointments")
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan appointment")
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate appointments")
	}

	return result, total, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return errors.Wrap(err, "insert appointment event")
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
