package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockSerializesSameKey(t *testing.T) {
	locks := NewMemoryLockManager()

	unlock, err := locks.Acquire(context.Background(), "ticket:a", 0)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		unlock2, err := locks.Acquire(context.Background(), "ticket:a", 0)
		assert.NoError(t, err)
		defer unlock2()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never succeeded after release")
	}
}

func TestMemoryLockDifferentKeysIndependent(t *testing.T) {
	locks := NewMemoryLockManager()

	unlockA, err := locks.Acquire(context.Background(), "ticket:a", 0)
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locks.Acquire(ctx, "ticket:b", 0)
	require.NoError(t, err, "different key must not block")
	unlockB()
}

func TestMemoryLockAcquireTimeout(t *testing.T) {
	locks := NewMemoryLockManager()

	unlock, err := locks.Acquire(context.Background(), "ticket:a", 0)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locks.Acquire(ctx, "ticket:a", 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryLockCounter(t *testing.T) {
	locks := NewMemoryLockManager()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Acquire(context.Background(), "ticket:a", 0)
			if err != nil {
				return
			}
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, counter)
}

func newMiniredisLocks(t *testing.T) (LockManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLockManager(client, "", nil), mr
}

func TestRedisLockSerializesSameKey(t *testing.T) {
	locks, _ := newMiniredisLocks(t)

	unlock, err := locks.Acquire(context.Background(), "ticket:a", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locks.Acquire(ctx, "ticket:a", time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock2, err := locks.Acquire(context.Background(), "ticket:a", time.Minute)
	require.NoError(t, err)
	unlock2()
}

func TestRedisLockExpiresAfterTTL(t *testing.T) {
	locks, mr := newMiniredisLocks(t)

	_, err := locks.Acquire(context.Background(), "ticket:a", 100*time.Millisecond)
	require.NoError(t, err)

	// a crashed holder never releases; the TTL frees the key
	mr.FastForward(150 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := locks.Acquire(ctx, "ticket:a", time.Minute)
	require.NoError(t, err)
	unlock()
}

func TestRedisLockReleaseOnlyOwnToken(t *testing.T) {
	locks, mr := newMiniredisLocks(t)

	unlock, err := locks.Acquire(context.Background(), "ticket:a", 50*time.Millisecond)
	require.NoError(t, err)

	// the lock expires and someone else grabs it
	mr.FastForward(100 * time.Millisecond)
	unlock2, err := locks.Acquire(context.Background(), "ticket:a", time.Minute)
	require.NoError(t, err)

	// the stale holder's release must not free the new holder's lock
	unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locks.Acquire(ctx, "ticket:a", time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock2()
}
