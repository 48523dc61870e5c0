package appointment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hackgods/booking-engine/internal/apperr"
	"github.com/hackgods/booking-engine/internal/catalog"
	"github.com/hackgods/booking-engine/internal/clock"
	"github.com/hackgods/booking-engine/internal/identity"
	redisclient "github.com/hackgods/booking-engine/internal/redis"
	"github.com/hackgods/booking-engine/internal/timeutil"
)

// splitCheckRepo checks for overlaps and inserts in two separate critical
// sections, parking every caller in between until all expected callers
// have checked or the gate times out. Without an outer lock every caller
// passes the check.
type splitCheckRepo struct {
	*MemoryRepository
	expected int32
	checked  atomic.Int32
	gate     time.Duration
}

func (r *splitCheckRepo) CreateIfFree(_ context.Context, a Appointment) error {
	r.mu.RLock()
	for _, other := range r.byID {
		if other.ProviderID != a.ProviderID || !other.Blocking() {
			continue
		}
		if timeutil.OverlapsTime(other.ScheduledAt, other.EndsAt(), a.ScheduledAt, a.EndsAt()) {
			r.mu.RUnlock()
			return conflictError(a.ProviderID, other.ScheduledAt, other.EndsAt())
		}
	}
	r.mu.RUnlock()

	r.checked.Add(1)
	deadline := time.Now().Add(r.gate)
	for r.checked.Load() < r.expected && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	r.mu.Lock()
	r.byID[a.ID] = cloneAppointment(a)
	r.mu.Unlock()
	return nil
}

type noLocker struct{}

func (noLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func runParallelBookings(t *testing.T, locker redisclient.Locker, n int) (wins, conflicts int32) {
	t.Helper()
	ctx := context.Background()
	provider := identity.Provider(uuid.New())
	cat := catalog.NewMemoryCatalog()
	item := catalog.Service{ID: uuid.New(), ProviderID: provider.ID, Name: "Coupe", Price: 4500, DurationMinutes: 90, IsActive: true}
	cat.PutService(item)

	repo := &splitCheckRepo{MemoryRepository: NewMemoryRepository(), expected: int32(n), gate: 100 * time.Millisecond}
	svc := NewService(repo, cat, nil, nil, locker, clock.NewMockClock(t0), zaptest.NewLogger(t), nil, Options{})

	var (
		wg       sync.WaitGroup
		ok, busy atomic.Int32
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := t0.Add(48*time.Hour + time.Duration(i)*time.Minute)
			_, err := svc.CreateAppointment(ctx, identity.Client(uuid.New()), CreateRequest{ServiceID: item.ID, ScheduledAt: at})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrSlotConflict):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	return ok.Load(), busy.Load()
}

func TestProviderLockSerializesCheckAndInsert(t *testing.T) {
	const n = 8
	wins, conflicts := runParallelBookings(t, redisclient.NewLocalLocker(10*time.Second), n)
	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(n-1), conflicts)
}

func TestSplitCheckRepoDoubleBooksWithoutLock(t *testing.T) {
	wins, _ := runParallelBookings(t, noLocker{}, 8)
	assert.Greater(t, wins, int32(1), "the repository must race when nothing serializes it")
}

// codeRaceRepo moves the appointment to another status right before the
// code is written.
type codeRaceRepo struct {
	*MemoryRepository
	moveTo AppointmentStatus
}

func (r *codeRaceRepo) UpdateCode(ctx context.Context, id uuid.UUID, code string, at time.Time) error {
	cur, err := r.MemoryRepository.Get(ctx, id)
	if err != nil {
		return err
	}
	next := *cur
	next.Status = r.moveTo
	if err := r.MemoryRepository.Transition(ctx, next, cur.Status); err != nil {
		return err
	}
	return r.MemoryRepository.UpdateCode(ctx, id, code, at)
}

func TestRegenerateCodeLosesRaceToTransition(t *testing.T) {
	cases := []struct {
		name   string
		moveTo AppointmentStatus
		kind   error
	}{
		{"cancelled", StatusCancelled, apperr.ErrAlreadyTerminal},
		{"started", StatusInProgress, apperr.ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := &codeRaceRepo{MemoryRepository: NewMemoryRepository(), moveTo: tc.moveTo}
			client := identity.Client(uuid.New())
			a := Appointment{
				ID:              uuid.New(),
				ClientID:        client.ID,
				ProviderID:      uuid.New(),
				ScheduledAt:     t0.Add(48 * time.Hour),
				DurationMinutes: 60,
				Status:          StatusConfirmed,
				Code:            "1234",
			}
			require.NoError(t, repo.CreateIfFree(ctx, a))

			svc := NewService(repo, catalog.NewMemoryCatalog(), nil, nil, redisclient.NewLocalLocker(time.Second),
				clock.NewMockClock(t0), zaptest.NewLogger(t), nil, Options{})

			_, err := svc.RegenerateCode(ctx, client, a.ID)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)

			got, err := repo.Get(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, "1234", got.Code)
			assert.Equal(t, tc.moveTo, got.Status)
		})
	}
}

func TestMemoryUpdateCodeRequiresOpenStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	a := Appointment{ID: uuid.New(), ProviderID: uuid.New(), ScheduledAt: t0, DurationMinutes: 30, Status: StatusCompleted, Code: "0001"}
	require.NoError(t, repo.CreateIfFree(ctx, a))

	err := repo.UpdateCode(ctx, a.ID, "9999", t0)
	assert.ErrorIs(t, err, errStatusChanged)

	got, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "0001", got.Code)
}
