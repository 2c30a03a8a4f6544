package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebosacco/ussd-gateway/pkg/adapters/memory"
	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

func testKey() domain.SessionKey {
	return domain.SessionKey{Msisdn: "256700000001", SessionID: "S1", Shortcode: "*284#"}
}

func TestLoadOrCreate(t *testing.T) {
	m := NewManager(memory.New())
	ctx := context.Background()

	sess, created, err := m.LoadOrCreate(ctx, testKey(), "welcome")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "welcome", sess.CurrentNodeID)

	sess.CurrentNodeID = "main_menu"
	require.NoError(t, m.Save(ctx, sess))

	again, created, err := m.LoadOrCreate(ctx, testKey(), "welcome")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "main_menu", again.CurrentNodeID)
}

func TestWithLockSerializesSameKey(t *testing.T) {
	m := NewManager(memory.New())
	ctx := context.Background()

	var (
		inside  int
		maxSeen int
		mu      sync.Mutex
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(ctx, testKey(), func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "critical sections for one key must not overlap")
}

func TestWithLockReleasesLockEntries(t *testing.T) {
	m := NewManager(memory.New())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.WithLock(ctx, testKey(), func(context.Context) error { return nil }))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks, "idle lock entries must be garbage collected")
}

func TestDestroyAndPinAttemptPassthrough(t *testing.T) {
	store := memory.New(memory.WithMaxPinAttempts(3))
	m := NewManager(store)
	ctx := context.Background()

	_, _, err := m.LoadOrCreate(ctx, testKey(), "welcome")
	require.NoError(t, err)

	count, err := m.IncrementPinAttempts(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, m.ResetPinAttempts(ctx, testKey()))
	require.NoError(t, m.Destroy(ctx, testKey()))

	_, err = m.Store().Load(ctx, testKey())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
