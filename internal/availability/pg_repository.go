package availability

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/db"
	"github.com/hackgods/booking-engine/internal/timeutil"
)

type PgRepository struct {
	db  db.DBTX
	txm *db.TxManager
}

func NewPgRepository(pool db.Pool, txm *db.TxManager) *PgRepository {
	return &PgRepository{db: pool, txm: txm}
}

const slotColumns = `id, provider_id, slot_date, start_minute, end_minute, is_available, reason, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var (
		s          Slot
		date       time.Time
		start, end int
	)
	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&date,
		&start,
		&end,
		&s.IsAvailable,
		&s.Reason,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "slot not found")
		}
		return nil, err
	}
	s.Date = timeutil.DateOf(date, time.UTC)
	s.Start = timeutil.TimeOfDay(start)
	s.End = timeutil.TimeOfDay(end)
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()
	var out []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *PgRepository) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, providerID uuid.UUID, from, to timeutil.Date) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE provider_id = $1 AND slot_date BETWEEN $2 AND $3
		ORDER BY slot_date, start_minute
	`, providerID, from.Time(), to.Time())
	if err != nil {
		return nil, errors.Wrap(err, "list slots")
	}
	slots, err := collectSlots(rows)
	return slots, errors.Wrap(err, "scan slots")
}

func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) error {
	return r.txm.Run(ctx, func(ctx context.Context, tx db.DBTX) error {
		for _, s := range slots {
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_slots (`+slotColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, s.ID, s.ProviderID, s.Date.Time(), int(s.Start), int(s.End), s.IsAvailable, s.Reason, s.CreatedAt, s.UpdatedAt)
			if err != nil {
				return errors.Wrapf(err, "insert slot on %s", s.Date)
			}
		}
		return nil
	})
}

func (r *PgRepository) UpdateSlot(ctx context.Context, s Slot) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE availability_slots
		SET slot_date = $3,
		    start_minute = $4,
		    end_minute = $5,
		    is_available = $6,
		    reason = $7,
		    updated_at = $8
		WHERE id = $1 AND provider_id = $2
	`, s.ID, s.ProviderID, s.Date.Time(), int(s.Start), int(s.End), s.IsAvailable, s.Reason, s.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update slot")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "slot %s not found", s.ID)
	}
	return nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id, providerID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM availability_slots WHERE id = $1 AND provider_id = $2`, id, providerID)
	return errors.Wrap(err, "delete slot")
}

func (r *PgRepository) DeleteSlotsForDate(ctx context.Context, providerID uuid.UUID, date timeutil.Date) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM availability_slots WHERE provider_id = $1 AND slot_date = $2`, providerID, date.Time())
	if err != nil {
		return 0, errors.Wrap(err, "delete slots for date")
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) UpsertBlock(ctx context.Context, b Block) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO availability_blocks (provider_id, block_date, reason, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_id, block_date) DO UPDATE SET reason = EXCLUDED.reason
	`, b.ProviderID, b.Date.Time(), b.Reason, b.CreatedAt)
	return errors.Wrap(err, "upsert block")
}

func (r *PgRepository) DeleteBlock(ctx context.Context, providerID uuid.UUID, date timeutil.Date) error {
	_, err := r.db.Exec(ctx, `DELETE FROM availability_blocks WHERE provider_id = $1 AND block_date = $2`, providerID, date.Time())
	return errors.Wrap(err, "delete block")
}

func (r *PgRepository) IsBlocked(ctx context.Context, providerID uuid.UUID, date timeutil.Date) (bool, error) {
	var exists int
	err := r.db.QueryRow(ctx, `
		SELECT 1 FROM availability_blocks WHERE provider_id = $1 AND block_date = $2
	`, providerID, date.Time()).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrap(err, "check block")
	}
	return true, nil
}

func (r *PgRepository) ListBlocks(ctx context.Context, providerID uuid.UUID, from, to timeutil.Date) ([]Block, error) {
	rows, err := r.db.Query(ctx, `
		SELECT provider_id, block_date, reason, created_at
		FROM availability_blocks
		WHERE provider_id = $1 AND block_date BETWEEN $2 AND $3
		ORDER BY block_date
	`, providerID, from.Time(), to.Time())
	if err != nil {
		return nil, errors.Wrap(err, "list blocks")
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		var (
			b    Block
			date time.Time
		)
		if err := rows.Scan(&b.ProviderID, &date, &b.Reason, &b.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan block")
		}
		b.Date = timeutil.DateOf(date, time.UTC)
		out = append(out, b)
	}
	return out, errors.Wrap(rows.Err(), "iterate blocks")
}
