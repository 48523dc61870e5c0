package reputation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hackgods/booking-engine/internal/clock"
	"github.com/hackgods/booking-engine/internal/identity"
	"github.com/hackgods/booking-engine/internal/metrics"
)

func newTestEngine(t *testing.T) (*Engine, *clock.MockClock, *MemoryRepository) {
	t.Helper()
	clk := clock.NewMockClock(now)
	repo := NewMemoryRepository()
	return NewEngine(repo, clk, zaptest.NewLogger(t), metrics.NewBookingMetrics(prometheus.NewRegistry())), clk, repo
}

func TestEngineCreatesRecordLazily(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	client := identity.Client(uuid.New())

	suspended, err := e.IsSuspended(ctx, client)
	require.NoError(t, err)
	assert.False(t, suspended)

	proj, err := e.Reliability(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, InitialScore, proj.Score)
	assert.Equal(t, BadgeNormal, proj.Badge.Level)

	rec, err := e.ApplyEvent(ctx, client, EventCompleted)
	require.NoError(t, err)
	assert.Equal(t, 60, rec.Score)
}

func TestThreeAbsencesSuspendProviderPermanently(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	ctx := context.Background()
	provider := identity.Provider(uuid.New())

	for i := 0; i < 3; i++ {
		_, err := e.ApplyEvent(ctx, provider, EventAbsent)
		require.NoError(t, err)
	}
	suspended, err := e.IsSuspended(ctx, provider)
	require.NoError(t, err)
	assert.True(t, suspended)

	// the score recovers well above zero
	for i := 0; i < 20; i++ {
		_, err := e.ApplyEvent(ctx, provider, EventCompleted)
		require.NoError(t, err)
	}
	clk.Add(365 * 24 * time.Hour)

	proj, err := e.Reliability(ctx, provider)
	require.NoError(t, err)
	assert.Greater(t, proj.Score, 0)
	assert.True(t, proj.IsSuspended)
}

func TestExpiredSuspensionIsClearedOnRead(t *testing.T) {
	e, _, repo := newTestEngine(t)
	ctx := context.Background()
	client := identity.Client(uuid.New())

	past := now.Add(-time.Hour)
	reason := ReasonLowScore
	_, _, err := repo.Update(ctx, client, now, "", func(rec *Record) (bool, error) {
		rec.Score = 5
		rec.IsSuspended = true
		rec.SuspendedUntil = &past
		rec.SuspensionReason = &reason
		return true, nil
	})
	require.NoError(t, err)

	stored, err := repo.Get(ctx, client)
	require.NoError(t, err)
	require.True(t, stored.IsSuspended, "nothing clears the flag until it is read")

	suspended, err := e.IsSuspended(ctx, client)
	require.NoError(t, err)
	assert.False(t, suspended)

	stored, err = repo.Get(ctx, client)
	require.NoError(t, err)
	assert.False(t, stored.IsSuspended)
	assert.Nil(t, stored.SuspendedUntil)
	assert.Nil(t, stored.SuspensionReason)
	assert.Equal(t, 5, stored.Score, "clearing never forgives the score")
}

func TestActiveTemporarySuspension(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	ctx := context.Background()
	client := identity.Client(uuid.New())

	for i := 0; i < 2; i++ {
		_, err := e.ApplyEvent(ctx, client, EventCancelledLateRejected)
		require.NoError(t, err)
	}
	_, err := e.ApplyEvent(ctx, client, EventLate30) // 50-15-15-10 = 10
	require.NoError(t, err)
	rec, err := e.ApplyEvent(ctx, client, EventDisputeLost) // -10
	require.NoError(t, err)
	require.True(t, rec.IsSuspended)

	clk.Add(SuspensionPeriod - time.Minute)
	suspended, err := e.IsSuspended(ctx, client)
	require.NoError(t, err)
	assert.True(t, suspended)

	clk.Add(2 * time.Minute)
	suspended, err = e.IsSuspended(ctx, client)
	require.NoError(t, err)
	assert.False(t, suspended)
}

func TestApplyAppointmentEventIsIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	client := identity.Client(uuid.New())
	appt := uuid.New()

	applied, err := e.ApplyAppointmentEvent(ctx, appt, client, EventCompleted)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = e.ApplyAppointmentEvent(ctx, appt, client, EventCompleted)
	require.NoError(t, err)
	assert.False(t, applied)

	rec, err := e.Record(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 60, rec.Score)
	assert.Equal(t, 1, rec.CompletedCount)
}

func TestConcurrentEventsDoNotLoseUpdates(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	client := identity.Client(uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ApplyEvent(ctx, client, EventCompleted)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := e.Record(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, 90, rec.Score)
	assert.Equal(t, 4, rec.CompletedCount)
}
