package availability

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/clock"
	"github.com/hackgods/booking-engine/internal/identity"
	"github.com/hackgods/booking-engine/internal/logging"
	redisclient "github.com/hackgods/booking-engine/internal/redis"
	"github.com/hackgods/booking-engine/internal/timeutil"
)

const (
	// MaxTemplateDays bounds one weekly template expansion.
	MaxTemplateDays = 12 * 7
	// MaxListDays bounds one ListSlots / ListBlocks range.
	MaxListDays = 366
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	clock  clock.Clock
	loc    *time.Location
	log    *zap.Logger
}

// NewService builds the availability store. loc is the zone slot dates and
// times of day are expressed in.
func NewService(repo Repository, locker redisclient.Locker, clk clock.Clock, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:   repo,
		locker: locker,
		clock:  clk,
		loc:    loc,
		log:    logging.OrNop(log),
	}
}

// CreateSlot adds a slot for the calling provider.
func (s *Service) CreateSlot(ctx context.Context, actor identity.Actor, in SlotInput) (*Slot, error) {
	if err := actor.Require(identity.RoleProvider); err != nil {
		return nil, err
	}
	if err := validateInterval(in.Start, in.End); err != nil {
		return nil, err
	}
	if err := s.checkNotPast(in.Date, in.Start); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	slot := Slot{
		ID:          uuid.New(),
		ProviderID:  actor.ID,
		Date:        in.Date,
		Start:       in.Start,
		End:         in.End,
		IsAvailable: in.IsAvailable,
		Reason:      in.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.locker.WithLock(ctx, redisclient.ProviderKey(actor.ID), func(ctx context.Context) error {
		existing, err := s.repo.ListSlots(ctx, actor.ID, in.Date, in.Date)
		if err != nil {
			return err
		}
		if conflict := findOverlap(existing, slot); conflict != nil {
			return overlapError(*conflict)
		}
		return s.repo.InsertSlots(ctx, []Slot{slot})
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("slot created",
		zap.Stringer("provider_id", actor.ID),
		zap.Stringer("date", slot.Date),
		zap.Stringer("start", slot.Start),
		zap.Stringer("end", slot.End))
	return &slot, nil
}

// UpdateSlot applies patch to one of the caller's slots, re-validating it
// against every other slot on the resulting date.
func (s *Service) UpdateSlot(ctx context.Context, actor identity.Actor, id uuid.UUID, patch SlotPatch) (*Slot, error) {
	if err := actor.Require(identity.RoleProvider); err != nil {
		return nil, err
	}

	var updated Slot
	err := s.locker.WithLock(ctx, redisclient.ProviderKey(actor.ID), func(ctx context.Context) error {
		cur, err := s.repo.GetSlot(ctx, id)
		if err != nil {
			return err
		}
		if cur.ProviderID != actor.ID {
			return apperr.New(apperr.ErrNotFound, "slot %s not found", id)
		}

		updated = applyPatch(*cur, patch)
		if err := validateInterval(updated.Start, updated.End); err != nil {
			return err
		}
		if err := s.checkNotPast(updated.Date, updated.Start); err != nil {
			return err
		}

		existing, err := s.repo.ListSlots(ctx, actor.ID, updated.Date, updated.Date)
		if err != nil {
			return err
		}
		if conflict := findOverlap(existing, updated); conflict != nil {
			return overlapError(*conflict)
		}

		updated.UpdatedAt = s.clock.Now()
		return s.repo.UpdateSlot(ctx, updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSlot is idempotent and never touches appointments.
func (s *Service) DeleteSlot(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	if err := actor.Require(identity.RoleProvider); err != nil {
		return err
	}
	return s.locker.WithLock(ctx, redisclient.ProviderKey(actor.ID), func(ctx context.Context) error {
		return s.repo.DeleteSlot(ctx, id, actor.ID)
	})
}

func (s *Service) DeleteSlotsForDate(ctx context.Context, actor identity.Actor, date timeutil.Date) (int64, error) {
	if err := actor.Require(identity.RoleProvider); err != nil {
		return 0, err
	}
	var n int64
	err := s.locker.WithLock(ctx, redisclient.ProviderKey(actor.ID), func(ctx context.Context) error {
		var err error
		n, err = s.repo.DeleteSlotsForDate(ctx, actor.ID, date)
		return err
	})
	return n, err
}

// ListSlots returns slots in [from, to] ordered by date then start.
func (s *Service) ListSlots(ctx context.Context, providerID uuid.UUID, from, to timeutil.Date) ([]Slot, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.repo.ListSlots(ctx, providerID, from, to)
}

// IsWithinAvailability reports whether an available slot on date fully
// contains [start, end) and the date is not blocked.
func (s *Service) IsWithinAvailability(ctx context.Context, providerID uuid.UUID, date timeutil.Date, start, end timeutil.TimeOfDay) (bool, error) {
	if err := validateInterval(start, end); err != nil {
		return false, err
	}

	blocked, err := s.repo.IsBlocked(ctx, providerID, date)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	slots, err := s.repo.ListSlots(ctx, providerID, date, date)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.IsAvailable && timeutil.Contains(slot.Start, slot.End, start, end) {
			return true, nil
		}
	}
	return false, nil
}

// ApplyWeeklyTemplate expands tmpl into concrete slots. Past dates and
// windows already started today are skipped. Either every generated slot is
// stored or none is.
func (s *Service) ApplyWeeklyTemplate(ctx context.Context, actor identity.Actor, tmpl WeeklyTemplate) ([]Slot, error) {
	if err := actor.Require(identity.RoleProvider); err != nil {
		return nil, err
	}
	if tmpl.To.Before(tmpl.From) {
		return nil, apperr.New(apperr.ErrInvalidInterval, "template range %s..%s is reversed", tmpl.From, tmpl.To)
	}
	if tmpl.From.DaysUntil(tmpl.To) >= MaxTemplateDays {
		return nil, apperr.New(apperr.ErrInvalidArgument, "template range exceeds %d days", MaxTemplateDays)
	}
	for day, windows := range tmpl.Windows {
		for _, w := range windows {
			if err := validateInterval(w.Start, w.End); err != nil {
				return nil, errors.Wrapf(err, "%s window", day)
			}
		}
	}

	now := s.clock.Now()
	today := timeutil.DateOf(now, s.loc)
	nowTOD := timeutil.TimeOfDayOf(now, s.loc)

	from := tmpl.From
	if from.Before(today) {
		from = today
	}

	var created []Slot
	err := s.locker.WithLock(ctx, redisclient.ProviderKey(actor.ID), func(ctx context.Context) error {
		created = created[:0]
		if from.After(tmpl.To) {
			return nil
		}

		existing, err := s.repo.ListSlots(ctx, actor.ID, from, tmpl.To)
		if err != nil {
			return err
		}
		byDate := make(map[timeutil.Date][]Slot)
		for _, slot := range existing {
			byDate[slot.Date] = append(byDate[slot.Date], slot)
		}

		for d := from; !d.After(tmpl.To); d = d.AddDays(1) {
			for _, w := range tmpl.Windows[d.Weekday()] {
				if d == today && w.Start <= nowTOD {
					continue
				}
				slot := Slot{
					ID:          uuid.New(),
					ProviderID:  actor.ID,
					Date:        d,
					Start:       w.Start,
					End:         w.End,
					IsAvailable: true,
					Reason:      tmpl.Reason,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if conflict := findOverlap(byDate[d], slot); conflict != nil {
					return overlapError(*conflict)
				}
				byDate[d] = append(byDate[d], slot)
				created = append(created, slot)
			}
		}

		if len(created) == 0 {
			return nil
		}
		return s.repo.InsertSlots(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("weekly template applied",
		zap.Stringer("provider_id", actor.ID),
		zap.Stringer("from", from),
		zap.Stringer("to", tmpl.To),
		zap.Int("slots", len(created)))
	return created, nil
}

// BlockDate marks date fully unavailable for the calling provider.
func (s *Service) BlockDate(ctx context.Context, actor identity.Actor, date timeutil.Date, reason *string) (*Block, error) {
	if err := actor.Require(identity.RoleProvider); err != nil {
		return nil, err
	}
	if date.Before(timeutil.DateOf(s.clock.Now(), s.loc)) {
		return nil, apperr.New(apperr.ErrPastDate, "date %s is in the past", date)
	}
	b := Block{ProviderID: actor.ID, Date: date, Reason: reason, CreatedAt: s.clock.Now()}
	err := s.locker.WithLock(ctx, redisclient.ProviderKey(actor.ID), func(ctx context.Context) error {
		return s.repo.UpsertBlock(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) UnblockDate(ctx context.Context, actor identity.Actor, date timeutil.Date) error {
	if err := actor.Require(identity.RoleProvider); err != nil {
		return err
	}
	return s.locker.WithLock(ctx, redisclient.ProviderKey(actor.ID), func(ctx context.Context) error {
		return s.repo.DeleteBlock(ctx, actor.ID, date)
	})
}

func (s *Service) ListBlocks(ctx context.Context, providerID uuid.UUID, from, to timeutil.Date) ([]Block, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.repo.ListBlocks(ctx, providerID, from, to)
}

func (s *Service) checkNotPast(date timeutil.Date, start timeutil.TimeOfDay) error {
	now := s.clock.Now()
	today := timeutil.DateOf(now, s.loc)
	if date.Before(today) {
		return apperr.New(apperr.ErrPastDate, "date %s is in the past", date)
	}
	if date == today && start <= timeutil.TimeOfDayOf(now, s.loc) {
		return apperr.New(apperr.ErrPastDate, "start %s on %s has already passed", start, date)
	}
	return nil
}

func validateInterval(start, end timeutil.TimeOfDay) error {
	if !start.Valid() || !end.Valid() || start >= end {
		return apperr.New(apperr.ErrInvalidInterval, "start %s must be before end %s", start, end)
	}
	return nil
}

func validateRange(from, to timeutil.Date) error {
	if to.Before(from) {
		return apperr.New(apperr.ErrInvalidInterval, "range %s..%s is reversed", from, to)
	}
	if from.DaysUntil(to) > MaxListDays {
		return apperr.New(apperr.ErrInvalidArgument, "range exceeds %d days", MaxListDays)
	}
	return nil
}

// findOverlap returns the first slot in existing, other than candidate
// itself, whose interval intersects candidate's on the same date.
func findOverlap(existing []Slot, candidate Slot) *Slot {
	for i := range existing {
		e := existing[i]
		if e.ID == candidate.ID || e.Date != candidate.Date {
			continue
		}
		if timeutil.Overlaps(e.Start, e.End, candidate.Start, candidate.End) {
			return &e
		}
	}
	return nil
}

func overlapError(conflict Slot) error {
	return apperr.Mark(&OverlapError{Conflict: conflict}, apperr.ErrOverlapConflict)
}

func applyPatch(s Slot, p SlotPatch) Slot {
	if p.Date != nil {
		s.Date = *p.Date
	}
	if p.Start != nil {
		s.Start = *p.Start
	}
	if p.End != nil {
		s.End = *p.End
	}
	if p.IsAvailable != nil {
		s.IsAvailable = *p.IsAvailable
	}
	if p.Reason != nil {
		s.Reason = p.Reason
	}
	return s
}
