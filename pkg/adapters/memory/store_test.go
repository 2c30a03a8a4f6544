package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

func testKey() domain.SessionKey {
	return domain.SessionKey{Msisdn: "256700000001", SessionID: "S1", Shortcode: "*284#"}
}

func TestSaveAndLoad(t *testing.T) {
	store := New()
	ctx := context.Background()

	sess := domain.NewSession(testKey(), "welcome")
	sess.SetField("network", "mtn")
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Load(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, "welcome", got.CurrentNodeID)
	assert.Equal(t, "mtn", got.Field("network"))
}

func TestLoadMissing(t *testing.T) {
	store := New()
	_, err := store.Load(context.Background(), testKey())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestExpiryAndSliding(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	store := New(WithTTL(30*time.Minute), WithClock(clock))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.NewSession(testKey(), "welcome")))

	// Touch inside the window: TTL slides.
	now = now.Add(29 * time.Minute)
	_, err := store.Load(ctx, testKey())
	require.NoError(t, err)

	now = now.Add(29 * time.Minute)
	_, err = store.Load(ctx, testKey())
	require.NoError(t, err)

	// Go idle past the window: gone.
	now = now.Add(31 * time.Minute)
	_, err = store.Load(ctx, testKey())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLockout(t *testing.T) {
	store := New(WithMaxPinAttempts(3))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.NewSession(testKey(), "welcome")))

	count, err := store.IncrementPinAttempts(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.IncrementPinAttempts(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.IncrementPinAttempts(ctx, testKey())
	assert.ErrorIs(t, err, domain.ErrLockedOut)
	assert.Equal(t, 3, count)

	_, err = store.Load(ctx, testKey())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestResetPinAttempts(t *testing.T) {
	store := New(WithMaxPinAttempts(3))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.NewSession(testKey(), "welcome")))
	_, err := store.IncrementPinAttempts(ctx, testKey())
	require.NoError(t, err)

	require.NoError(t, store.ResetPinAttempts(ctx, testKey()))

	count, err := store.IncrementPinAttempts(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDestroy(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.NewSession(testKey(), "welcome")))
	require.NoError(t, store.Destroy(ctx, testKey()))

	_, err := store.Load(ctx, testKey())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Zero(t, store.Len())
}
