package reputation

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/clock"
	"github.com/hackgods/booking-engine/internal/identity"
	"github.com/hackgods/booking-engine/internal/logging"
	"github.com/hackgods/booking-engine/internal/metrics"
)

// Engine owns reliability records. Other components submit events; only
// the engine changes scores or suspensions.
type Engine struct {
	repo    Repository
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.BookingMetrics
}

func NewEngine(repo Repository, clk clock.Clock, log *zap.Logger, m *metrics.BookingMetrics) *Engine {
	return &Engine{
		repo:    repo,
		clock:   clk,
		log:     logging.OrNop(log),
		metrics: m,
	}
}

// ApplyEvent folds ev into actor's record and returns the result.
func (e *Engine) ApplyEvent(ctx context.Context, actor identity.Actor, ev Event) (*Record, error) {
	rec, _, err := e.apply(ctx, actor, ev, "")
	return rec, err
}

// ApplyAppointmentEvent applies ev at most once per (appointment, actor,
// event). applied is false for a replay.
func (e *Engine) ApplyAppointmentEvent(ctx context.Context, appointmentID uuid.UUID, actor identity.Actor, ev Event) (bool, error) {
	key := appointmentID.String() + ":" + actor.String() + ":" + string(ev)
	_, applied, err := e.apply(ctx, actor, ev, key)
	return applied, err
}

func (e *Engine) apply(ctx context.Context, actor identity.Actor, ev Event, dedupKey string) (*Record, bool, error) {
	if _, err := Points(actor.Role, ev); err != nil {
		return nil, false, err
	}

	now := e.clock.Now()
	var outcome Outcome
	rec, applied, err := e.repo.Update(ctx, actor, now, dedupKey, func(rec *Record) (bool, error) {
		var err error
		outcome, err = Apply(rec, ev, now)
		return err == nil, err
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "apply %s to %s", ev, actor)
	}
	if !applied {
		e.log.Debug("reputation event already applied", zap.String("key", dedupKey))
		return nil, false, nil
	}

	e.metrics.ObserveReputationEvent(string(actor.Role), string(ev))
	e.log.Info("reputation updated",
		zap.Stringer("actor", actor),
		zap.String("event", string(ev)),
		zap.Int("delta", outcome.Delta),
		zap.Int("score", rec.Score))

	if outcome.Suspended {
		e.metrics.ObserveSuspension(string(actor.Role), outcome.PermanentSuspended)
		e.log.Warn("actor suspended",
			zap.Stringer("actor", actor),
			zap.Bool("permanent", outcome.PermanentSuspended),
			zap.Int("score", rec.Score))
	}
	return rec, true, nil
}

// IsSuspended reports the actor's suspension state. An expired time-boxed
// suspension is cleared here, on read; nothing else ever lifts one.
func (e *Engine) IsSuspended(ctx context.Context, actor identity.Actor) (bool, error) {
	rec, err := e.repo.Get(ctx, actor)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !rec.IsSuspended {
		return false, nil
	}

	now := e.clock.Now()
	if rec.SuspendedUntil == nil || rec.SuspendedUntil.After(now) {
		return true, nil
	}

	rec, _, err = e.repo.Update(ctx, actor, now, "", func(rec *Record) (bool, error) {
		return clearExpired(rec, now), nil
	})
	if err != nil {
		return false, errors.Wrap(err, "clear expired suspension")
	}
	if !rec.IsSuspended {
		e.log.Info("temporary suspension expired", zap.Stringer("actor", actor))
	}
	return rec.IsSuspended, nil
}

// Record returns the actor's record, or a fresh unsaved one when none exists.
func (e *Engine) Record(ctx context.Context, actor identity.Actor) (*Record, error) {
	rec, err := e.repo.Get(ctx, actor)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			fresh := NewRecord(actor, e.clock.Now())
			return &fresh, nil
		}
		return nil, err
	}
	return rec, nil
}

// Reliability is the display projection {score, badge, suspended}.
func (e *Engine) Reliability(ctx context.Context, actor identity.Actor) (Projection, error) {
	if actor.Role != identity.RoleClient && actor.Role != identity.RoleProvider {
		return Projection{}, apperr.New(apperr.ErrInvalidArgument, "role %q has no reputation", actor.Role)
	}
	suspended, err := e.IsSuspended(ctx, actor)
	if err != nil {
		return Projection{}, err
	}
	rec, err := e.Record(ctx, actor)
	if err != nil {
		return Projection{}, err
	}
	return Projection{
		Score:       rec.Score,
		Badge:       BadgeFor(actor.Role, rec.Score),
		IsSuspended: suspended,
	}, nil
}
