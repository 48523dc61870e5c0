package appointment

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/catalog"
	"github.com/hackgods/booking-engine/internal/clock"
	"github.com/hackgods/booking-engine/internal/identity"
	"github.com/hackgods/booking-engine/internal/logging"
	"github.com/hackgods/booking-engine/internal/metrics"
	redisclient "github.com/hackgods/booking-engine/internal/redis"
	"github.com/hackgods/booking-engine/internal/reputation"
	"github.com/hackgods/booking-engine/internal/timeutil"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCodeRenewed   = "APPOINTMENT_CODE_RENEWED"
)

const (
	// ClientCancellationWindow is how long before the start a client may
	// still cancel.
	ClientCancellationWindow = 24 * time.Hour

	DefaultPageSize = 10
	MaxPageSize     = 100
)

// AvailabilityChecker answers whether a provider publishes the given span.
type AvailabilityChecker interface {
	IsWithinAvailability(ctx context.Context, providerID uuid.UUID, date timeutil.Date, start, end timeutil.TimeOfDay) (bool, error)
}

// ReputationSink receives the events the booking lifecycle produces.
type ReputationSink interface {
	ApplyAppointmentEvent(ctx context.Context, appointmentID uuid.UUID, actor identity.Actor, ev reputation.Event) (bool, error)
	IsSuspended(ctx context.Context, actor identity.Actor) (bool, error)
}

type Options struct {
	// EnforceAvailability rejects bookings outside published slots.
	EnforceAvailability bool
	// BlockSuspended rejects bookings made by or with a suspended actor.
	BlockSuspended bool
	// Location is the zone slot dates and times of day are expressed in.
	Location *time.Location
}

type Service struct {
	repo       Repository
	catalog    catalog.Catalog
	avail      AvailabilityChecker
	reputation ReputationSink
	locker     redisclient.Locker
	clock      clock.Clock
	log        *zap.Logger
	metrics    *metrics.BookingMetrics
	opts       Options
}

func NewService(
	repo Repository,
	cat catalog.Catalog,
	avail AvailabilityChecker,
	rep ReputationSink,
	locker redisclient.Locker,
	clk clock.Clock,
	log *zap.Logger,
	m *metrics.BookingMetrics,
	opts Options,
) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		repo:       repo,
		catalog:    cat,
		avail:      avail,
		reputation: rep,
		locker:     locker,
		clock:      clk,
		log:        logging.OrNop(log),
		metrics:    m,
		opts:       opts,
	}
}

// CreateAppointment books a service for the calling client. The conflict
// check and the insert run under the provider's lock so that concurrent
// requests for overlapping times cannot both succeed.
func (s *Service) CreateAppointment(ctx context.Context, actor identity.Actor, req CreateRequest) (*Summary, error) {
	if err := actor.Require(identity.RoleClient); err != nil {
		return nil, err
	}

	appt, err := s.prepareBooking(ctx, actor, req)
	if err != nil {
		s.metrics.ObserveBooking(bookingOutcome(err))
		return nil, err
	}

	started := time.Now()
	err = s.locker.WithLock(ctx, redisclient.ProviderKey(appt.ProviderID), func(lockCtx context.Context) error {
		return s.repo.CreateIfFree(lockCtx, *appt)
	})
	s.metrics.ObserveLockSection(time.Since(started).Seconds())
	s.metrics.ObserveBooking(bookingOutcome(err))
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.log.Info("booking conflict",
				zap.Stringer("provider_id", appt.ProviderID),
				zap.Time("requested", appt.ScheduledAt),
				zap.Time("conflict_start", conflict.Start),
				zap.Time("conflict_end", conflict.End))
		}
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"client_id":    appt.ClientID.String(),
		"provider_id":  appt.ProviderID.String(),
		"service_id":   appt.ServiceID.String(),
		"scheduled_at": appt.ScheduledAt,
		"duration":     appt.DurationMinutes,
		"price":        appt.Price,
	})
	s.log.Info("appointment created",
		zap.Stringer("appointment_id", appt.ID),
		zap.Stringer("provider_id", appt.ProviderID),
		zap.Time("scheduled_at", appt.ScheduledAt))

	return s.summarize(ctx, actor, *appt, nil), nil
}

// prepareBooking runs every check that does not need the lock.
func (s *Service) prepareBooking(ctx context.Context, actor identity.Actor, req CreateRequest) (*Appointment, error) {
	svc, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, apperr.New(apperr.ErrServiceNotFound, "service %s is not bookable", req.ServiceID)
	}
	if svc.DurationMinutes <= 0 {
		return nil, apperr.New(apperr.ErrInvalidArgument, "service %s has no duration", req.ServiceID)
	}

	now := s.clock.Now()
	if !req.ScheduledAt.After(now) {
		return nil, apperr.New(apperr.ErrPastSchedule, "scheduled start %s is not in the future", req.ScheduledAt.Format(time.RFC3339))
	}

	if s.opts.BlockSuspended {
		if err := s.checkNotSuspended(ctx, actor); err != nil {
			return nil, err
		}
		if err := s.checkNotSuspended(ctx, identity.Provider(svc.ProviderID)); err != nil {
			return nil, err
		}
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute
	if s.opts.EnforceAvailability {
		if err := s.checkAvailability(ctx, svc.ProviderID, req.ScheduledAt, duration); err != nil {
			return nil, err
		}
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	return &Appointment{
		ID:              uuid.New(),
		ClientID:        actor.ID,
		ProviderID:      svc.ProviderID,
		ServiceID:       svc.ID,
		ServiceName:     svc.Name,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: svc.DurationMinutes,
		Price:           svc.Price,
		Status:          StatusPending,
		Code:            code,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *Service) checkNotSuspended(ctx context.Context, actor identity.Actor) error {
	suspended, err := s.reputation.IsSuspended(ctx, actor)
	if err != nil {
		return errors.Wrapf(err, "check suspension of %s", actor)
	}
	if suspended {
		return apperr.New(apperr.ErrActorSuspended, "%s is suspended", actor.Role)
	}
	return nil
}

func (s *Service) checkAvailability(ctx context.Context, providerID uuid.UUID, start time.Time, d time.Duration) error {
	day, from, to, ok := timeutil.LocalSpan(start, d, s.opts.Location)
	if !ok {
		return apperr.New(apperr.ErrOutsideAvailability, "appointment may not cross midnight")
	}
	within, err := s.avail.IsWithinAvailability(ctx, providerID, day, from, to)
	if err != nil {
		return errors.Wrap(err, "check availability")
	}
	if !within {
		return apperr.New(apperr.ErrOutsideAvailability, "provider is not available on %s from %s to %s", day, from, to)
	}
	return nil
}

// UpdateStatus moves one of the calling provider's appointments to target.
// Cancelling requires a reason.
func (s *Service) UpdateStatus(ctx context.Context, actor identity.Actor, id uuid.UUID, target AppointmentStatus, reason string) (*Summary, error) {
	if err := actor.Require(identity.RoleProvider); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	check := func(a *Appointment) error {
		if err := ValidateTransition(a.Status, target); err != nil {
			return err
		}
		if target == StatusCancelled && reason == "" {
			return apperr.New(apperr.ErrMissingReason, "a reason is required to cancel")
		}
		return nil
	}

	cur, err := s.loadFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := check(cur); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	next := *cur
	next.Status = target
	next.UpdatedAt = now
	switch target {
	case StatusConfirmed:
		next.Confirmation = &Confirmation{ConfirmedBy: actor.ID, ConfirmedAt: now}
	case StatusCancelled:
		next.Cancellation = &Cancellation{
			CancelledBy: actor.ID,
			CancelledAt: now,
			Reason:      reason,
			Type:        CancelledByProvider,
		}
	}

	if err := s.transition(ctx, cur, next, check); err != nil {
		return nil, err
	}
	s.afterTransition(ctx, cur.Status, next)
	return s.summarize(ctx, actor, next, nil), nil
}

// CancelByClient cancels one of the calling client's appointments. It is
// refused less than ClientCancellationWindow before the start.
func (s *Service) CancelByClient(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*Summary, error) {
	if err := actor.Require(identity.RoleClient); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	var now time.Time
	check := func(a *Appointment) error {
		switch a.Status {
		case StatusCancelled, StatusCompleted, StatusNoShow:
			return apperr.New(apperr.ErrAlreadyTerminal, "appointment is already %s", a.Status)
		case StatusInProgress:
			return apperr.New(apperr.ErrInvalidTransition, "appointment has already started")
		}
		if timeutil.HoursUntil(now, a.ScheduledAt) < ClientCancellationWindow.Hours() {
			return apperr.New(apperr.ErrCancellationWindowClosed,
				"appointments can only be cancelled %s before they start", ClientCancellationWindow)
		}
		return nil
	}

	cur, err := s.loadFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now = s.clock.Now()
	if err := check(cur); err != nil {
		return nil, err
	}

	next := *cur
	next.Status = StatusCancelled
	next.UpdatedAt = now
	next.Cancellation = &Cancellation{
		CancelledBy: actor.ID,
		CancelledAt: now,
		Reason:      reason,
		Type:        CancelledByClient,
	}

	if err := s.transition(ctx, cur, next, check); err != nil {
		return nil, err
	}
	s.afterTransition(ctx, cur.Status, next)
	return s.summarize(ctx, actor, next, nil), nil
}

// StartWithCode moves a confirmed appointment to in_progress once the
// provider presents the client's code.
func (s *Service) StartWithCode(ctx context.Context, actor identity.Actor, id uuid.UUID, code string) (*Summary, error) {
	if err := actor.Require(identity.RoleProvider); err != nil {
		return nil, err
	}

	check := func(a *Appointment) error {
		if a.Status != StatusConfirmed {
			return ValidateTransition(a.Status, StatusInProgress)
		}
		return nil
	}

	cur, err := s.loadFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := check(cur); err != nil {
		return nil, err
	}
	if !codesMatch(cur.Code, strings.TrimSpace(code)) {
		s.log.Info("confirmation code mismatch", zap.Stringer("appointment_id", id))
		return nil, apperr.New(apperr.ErrInvalidCode, "confirmation code does not match")
	}

	next := *cur
	next.Status = StatusInProgress
	next.UpdatedAt = s.clock.Now()

	if err := s.transition(ctx, cur, next, check); err != nil {
		return nil, err
	}
	s.afterTransition(ctx, cur.Status, next)
	return s.summarize(ctx, actor, next, nil), nil
}

// RegenerateCode issues a fresh code for one of the calling client's open
// appointments.
func (s *Service) RegenerateCode(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Summary, error) {
	if err := actor.Require(identity.RoleClient); err != nil {
		return nil, err
	}
	cur, err := s.loadFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := codeRenewable(cur.Status); err != nil {
		return nil, err
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := s.repo.UpdateCode(ctx, id, code, now); err != nil {
		if !errors.Is(err, errStatusChanged) {
			return nil, err
		}
		fresh, getErr := s.repo.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if renewErr := codeRenewable(fresh.Status); renewErr != nil {
			return nil, renewErr
		}
		return nil, err
	}
	cur.Code = code
	cur.UpdatedAt = now

	s.logEvent(ctx, id, EventAppointmentCodeRenewed, map[string]any{})
	return s.summarize(ctx, actor, *cur, nil), nil
}

func codeRenewable(status AppointmentStatus) error {
	switch {
	case IsTerminal(status):
		return apperr.New(apperr.ErrAlreadyTerminal, "appointment is already %s", status)
	case status == StatusInProgress:
		return apperr.New(apperr.ErrInvalidTransition, "appointment has already started")
	}
	return nil
}

// GetAppointment returns an appointment to one of its participants or an
// admin. Anyone else gets NotFound.
func (s *Service) GetAppointment(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Summary, error) {
	a, err := s.loadFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, actor, *a, nil), nil
}

// ListAppointments pages through the appointments visible to actor.
// Clients see the latest first, providers their agenda in order.
func (s *Service) ListAppointments(ctx context.Context, actor identity.Actor, f ListFilter) (*Page, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, apperr.New(apperr.ErrInvalidArgument, "from must not be after to")
	}

	items, total, err := s.repo.List(ctx, actor, f)
	if err != nil {
		return nil, errors.Wrap(err, "list appointments")
	}

	providers := make(map[uuid.UUID]catalog.Provider)
	page := &Page{
		Items:      make([]Summary, 0, len(items)),
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}
	for _, a := range items {
		page.Items = append(page.Items, *s.summarize(ctx, actor, a, providers))
	}
	return page, nil
}

// loadFor reads an appointment and hides it from actors that take no part
// in it.
func (s *Service) loadFor(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == identity.RoleAdmin,
		actor.Role == identity.RoleClient && a.ClientID == actor.ID,
		actor.Role == identity.RoleProvider && a.ProviderID == actor.ID:
		return a, nil
	}
	return nil, apperr.New(apperr.ErrNotFound, "appointment not found")
}

// transition stores next if the appointment is still in cur's status. The
// loser of a race re-reads and gets the error check reports for the fresh
// state.
func (s *Service) transition(ctx context.Context, cur *Appointment, next Appointment, check func(*Appointment) error) error {
	err := s.repo.Transition(ctx, next, cur.Status)
	if !errors.Is(err, errStatusChanged) {
		return err
	}
	fresh, getErr := s.repo.Get(ctx, cur.ID)
	if getErr != nil {
		return getErr
	}
	if checkErr := check(fresh); checkErr != nil {
		return checkErr
	}
	return err
}

func (s *Service) afterTransition(ctx context.Context, from AppointmentStatus, a Appointment) {
	s.metrics.ObserveTransition(string(from), string(a.Status))

	payload := map[string]any{
		"from": string(from),
		"to":   string(a.Status),
	}
	if c := a.Cancellation; c != nil && a.Status == StatusCancelled {
		payload["cancelled_by"] = string(c.Type)
		payload["reason"] = c.Reason
	}
	s.logEvent(ctx, a.ID, EventAppointmentStatusChanged, payload)
	s.log.Info("appointment status changed",
		zap.Stringer("appointment_id", a.ID),
		zap.String("from", string(from)),
		zap.String("to", string(a.Status)))

	for _, e := range reputationEvents(a) {
		s.emit(ctx, a.ID, e.actor, e.event)
	}
}

type actorEvent struct {
	actor identity.Actor
	event reputation.Event
}

// reputationEvents lists what a transition into a.Status reports.
func reputationEvents(a Appointment) []actorEvent {
	client := identity.Client(a.ClientID)
	provider := identity.Provider(a.ProviderID)

	switch a.Status {
	case StatusCompleted:
		return []actorEvent{{client, reputation.EventCompleted}, {provider, reputation.EventCompleted}}
	case StatusNoShow:
		return []actorEvent{{client, reputation.EventNoShow}, {provider, reputation.EventNoShow}}
	case StatusCancelled:
		c := a.Cancellation
		if c == nil {
			return nil
		}
		if c.Type == CancelledByClient {
			return []actorEvent{{client, reputation.EventCancelledEarly}}
		}
		ev := reputation.EventCancelledEarly
		if timeutil.HoursUntil(c.CancelledAt, a.ScheduledAt) < ClientCancellationWindow.Hours() {
			ev = reputation.EventCancelledLateAccepted
		}
		return []actorEvent{{provider, ev}}
	}
	return nil
}

// emit runs after the appointment change has committed. A failure is
// logged and counted; the change itself stands.
func (s *Service) emit(ctx context.Context, appointmentID uuid.UUID, actor identity.Actor, ev reputation.Event) {
	if _, err := s.reputation.ApplyAppointmentEvent(ctx, appointmentID, actor, ev); err != nil {
		s.metrics.ObserveReputationError()
		s.log.Error("failed to apply reputation event",
			zap.Stringer("appointment_id", appointmentID),
			zap.Stringer("actor", actor),
			zap.String("event", string(ev)),
			zap.Error(err))
	}
}

func (s *Service) summarize(ctx context.Context, actor identity.Actor, a Appointment, cache map[uuid.UUID]catalog.Provider) *Summary {
	if actor.Role != identity.RoleClient || a.ClientID != actor.ID {
		a.Code = ""
	}
	return &Summary{Appointment: a, Provider: s.provider(ctx, a.ProviderID, cache)}
}

func (s *Service) provider(ctx context.Context, id uuid.UUID, cache map[uuid.UUID]catalog.Provider) catalog.Provider {
	if p, ok := cache[id]; ok {
		return p
	}
	p := catalog.Provider{ID: id}
	if found, err := s.catalog.GetProvider(ctx, id); err == nil {
		p = *found
	} else {
		s.log.Warn("provider lookup failed", zap.Stringer("provider_id", id), zap.Error(err))
	}
	if cache != nil {
		cache[id] = p
	}
	return p
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.Stringer("appointment_id", appointmentID),
			zap.Error(err))
	}
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, apperr.ErrSlotConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrBusy):
		return "busy"
	case apperr.Kind(err) != nil:
		return "rejected"
	default:
		return "error"
	}
}
