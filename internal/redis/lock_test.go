package redisclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-engine/internal/apperr"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := Connect(context.Background(), ClientOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestConnectFailsWhenServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = Connect(ctx, ClientOptions{Addr: addr})
	assert.Error(t, err)

	_, err = Connect(ctx, ClientOptions{})
	assert.Error(t, err)
}

func TestRedisLockerReleasesKey(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, 100*time.Millisecond)
	key := ProviderKey(uuid.New())

	err := locker.WithLock(context.Background(), key, func(ctx context.Context) error {
		assert.True(t, mr.Exists(key), "key must be held inside the critical section")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))
}

func TestRedisLockerPropagatesError(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, 100*time.Millisecond)
	key := ProviderKey(uuid.New())
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), key, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(key))
}

func TestRedisLockerTimesOutWhenHeld(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, 60*time.Millisecond)
	key := ProviderKey(uuid.New())
	require.NoError(t, mr.Set(key, "someone-else"))

	err := locker.WithLock(context.Background(), key, func(context.Context) error {
		t.Fatal("critical section must not run")
		return nil
	})
	assert.True(t, errors.Is(err, ErrLockNotAcquired))
	assert.True(t, errors.Is(err, apperr.ErrBusy))

	val, _ := mr.Get(key)
	assert.Equal(t, "someone-else", val, "foreign lock must not be released")
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 5*time.Second, time.Second)
	key := ProviderKey(uuid.New())
	require.NoError(t, mr.Set(key, "someone-else"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		mr.Del(key)
	}()

	ran := false
	err := locker.WithLock(context.Background(), key, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func testMutualExclusion(t *testing.T, locker Locker) {
	t.Helper()
	key := ProviderKey(uuid.New())

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), key, func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxSeen)
					if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestRedisLockerMutualExclusion(t *testing.T) {
	_, client := setupTestRedis(t)
	testMutualExclusion(t, NewRedisLocker(client, 5*time.Second, 5*time.Second))
}

func TestLocalLockerMutualExclusion(t *testing.T) {
	testMutualExclusion(t, NewLocalLocker(5*time.Second))
}

func TestLocalLockerTimesOut(t *testing.T) {
	locker := NewLocalLocker(30 * time.Millisecond)
	key := ProviderKey(uuid.New())

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), key, func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := locker.WithLock(context.Background(), key, func(context.Context) error { return nil })
	close(done)
	assert.True(t, errors.Is(err, apperr.ErrBusy))
}
