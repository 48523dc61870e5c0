package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("created")
	m.ObserveBooking("created")
	m.ObserveBooking("conflict")
	m.ObserveTransition("pending", "confirmed")
	m.ObserveReputationEvent("client", "completed")
	m.ObserveReputationError()
	m.ObserveSuspension("provider", true)
	m.ObserveLockSection(0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookings.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suspensions.WithLabelValues("provider", "permanent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reputationErrors))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *BookingMetrics
	assert.NotPanics(t, func() {
		m.ObserveBooking("created")
		m.ObserveTransition("a", "b")
		m.ObserveReputationEvent("client", "completed")
		m.ObserveReputationError()
		m.ObserveSuspension("client", false)
		m.ObserveLockSection(1)
	})
}
