package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hackgods/booking-engine/internal/appointment"
	"github.com/hackgods/booking-engine/internal/availability"
	"github.com/hackgods/booking-engine/internal/logging"
	"github.com/hackgods/booking-engine/internal/reputation"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Service
	Reputation   *reputation.Engine
	Tokens       *TokenService

	PgPool Pinger
	Redis  *redis.Client
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer

	Logger      *zap.Logger
	Env         string
	Version     string
	CORSOrigins []string
	// BookingRate and BookingBurst bound POST /appointments per actor.
	BookingRate  rate.Limit
	BookingBurst int
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := logging.OrNop(cfg.Logger)
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	appts := &appointmentHandlers{svc: cfg.Appointments, log: log}
	avail := &availabilityHandlers{svc: cfg.Availability, log: log}
	rep := &reputationHandlers{engine: cfg.Reputation, log: log}
	limiter := newActorLimiter(cfg.BookingRate, cfg.BookingBurst, log)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens))

		// Appointment endpoints
		r.With(limiter.Middleware).Post("/appointments", appts.create)
		r.Get("/appointments", appts.list)
		r.Get("/appointments/{id}", appts.get)
		r.Patch("/appointments/{id}/status", appts.updateStatus)
		r.Patch("/appointments/{id}/cancel", appts.cancel)
		r.Post("/appointments/{id}/start", appts.start)
		r.Post("/appointments/{id}/code", appts.regenerateCode)

		// Availability endpoints
		r.Post("/availability/slots", avail.createSlot)
		r.Get("/availability/slots", avail.listSlots)
		r.Put("/availability/slots/{id}", avail.updateSlot)
		r.Delete("/availability/slots/{id}", avail.deleteSlot)
		r.Delete("/availability/dates/{date}", avail.deleteSlotsForDate)
		r.Post("/availability/weekly", avail.applyWeekly)
		r.Post("/availability/blocks", avail.blockDate)
		r.Get("/availability/blocks", avail.listBlocks)
		r.Delete("/availability/blocks/{date}", avail.unblockDate)
		r.Get("/providers/{id}/availability/check", avail.check)

		// Reputation endpoints
		r.Get("/reputation/{role}/{id}", rep.reliability)
		r.Post("/reputation/events", rep.applyEvent)
	})

	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}).Handler(r)
}
