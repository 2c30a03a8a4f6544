package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLocker(client, "ussd:"), mr
}

func TestLockAndUnlock(t *testing.T) {
	locker, mr := testLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "256700000001:S1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("ussd:lock:256700000001:S1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("ussd:lock:256700000001:S1"))
}

func TestLockContention(t *testing.T) {
	locker, _ := testLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	// A second holder cannot acquire until the first releases.
	blocked, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(blocked, "k", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestUnlockIgnoresStolenLock(t *testing.T) {
	locker, mr := testLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	// Simulate expiry and re-acquisition by another holder.
	mr.FastForward(6 * time.Second)
	unlock2, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	// The stale holder's unlock must not delete the new holder's lock.
	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("ussd:lock:k"))

	require.NoError(t, unlock2(ctx))
}
