package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the scheduling engine.
// A nil *BookingMetrics is valid and records nothing.
type BookingMetrics struct {
	bookings         *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	reputationEvents *prometheus.CounterVec
	reputationErrors prometheus.Counter
	suspensions      *prometheus.CounterVec
	lockWait         prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "appointments",
			Name:      "create_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Applied appointment status transitions",
		}, []string{"from", "to"}),
		reputationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "reputation",
			Name:      "events_total",
			Help:      "Reputation events applied",
		}, []string{"role", "event"}),
		reputationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "reputation",
			Name:      "emit_errors_total",
			Help:      "Reputation events that failed to apply after the appointment committed",
		}),
		suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "reputation",
			Name:      "suspensions_total",
			Help:      "Suspensions imposed",
		}, []string{"role", "kind"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "lock",
			Name:      "section_seconds",
			Help:      "Time spent acquiring and holding the per-provider lock",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.transitions, m.reputationEvents, m.reputationErrors, m.suspensions, m.lockWait)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObserveReputationEvent(role, event string) {
	if m == nil {
		return
	}
	m.reputationEvents.WithLabelValues(role, event).Inc()
}

func (m *BookingMetrics) ObserveReputationError() {
	if m == nil {
		return
	}
	m.reputationErrors.Inc()
}

func (m *BookingMetrics) ObserveSuspension(role string, permanent bool) {
	if m == nil {
		return
	}
	kind := "temporary"
	if permanent {
		kind = "permanent"
	}
	m.suspensions.WithLabelValues(role, kind).Inc()
}

func (m *BookingMetrics) ObserveLockSection(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}
