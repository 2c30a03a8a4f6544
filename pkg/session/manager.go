// Package session coordinates concurrent access to dialog sessions.
// Requests for the same key are not guaranteed to arrive in order (the
// carrier retransmits), so every read-modify-write runs under per-key
// mutual exclusion: an in-process refcounted mutex, plus an optional
// distributed lock when running more than one replica.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebosacco/ussd-gateway/internal/logging"
	"github.com/ebosacco/ussd-gateway/pkg/domain"
	"github.com/ebosacco/ussd-gateway/pkg/ports"
)

// lockEntry holds one key's mutex and its reference count, so idle entries
// can be garbage collected.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager wraps a SessionStore with per-key locking.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex
	locks map[domain.SessionKey]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) { m.locker = locker }
}

// WithLockTTL bounds how long a crashed holder can block a key.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.lockTTL = ttl }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[domain.SessionKey]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(key domain.SessionKey) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[key]
	if !ok {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(key domain.SessionKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// WithLock runs fn while holding the key's lock(s).
func (m *Manager) WithLock(ctx context.Context, key domain.SessionKey, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		lockKey := key.Msisdn + ":" + key.SessionID + ":" + key.Shortcode
		unlock, err := m.locker.Lock(ctx, lockKey, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock, it will expire via TTL",
					"msisdn", key.Msisdn,
					"session_id", key.SessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// LoadOrCreate returns the live session for key, or creates a fresh one at
// entryNode. The second return reports whether the session was created.
func (m *Manager) LoadOrCreate(ctx context.Context, key domain.SessionKey, entryNode string) (*domain.Session, bool, error) {
	var (
		session *domain.Session
		created bool
	)
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		session, err = m.store.Load(ctx, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		session = domain.NewSession(key, entryNode)
		created = true
		if err := m.store.Create(ctx, session); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return session, created, err
}

// Save persists the session under its key's lock.
func (m *Manager) Save(ctx context.Context, session *domain.Session) error {
	return m.WithLock(ctx, session.Key(), func(ctx context.Context) error {
		return m.store.Save(ctx, session)
	})
}

// Destroy removes the session and its subordinate keys.
func (m *Manager) Destroy(ctx context.Context, key domain.SessionKey) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Destroy(ctx, key)
	})
}

// IncrementPinAttempts delegates to the store's atomic increment. The store
// destroys the session and returns domain.ErrLockedOut when the maximum is
// reached; the count is valid either way.
func (m *Manager) IncrementPinAttempts(ctx context.Context, key domain.SessionKey) (int, error) {
	var count int
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		count, err = m.store.IncrementPinAttempts(ctx, key)
		return err
	})
	return count, err
}

// ResetPinAttempts zeroes the counter after a confirmed successful PIN.
func (m *Manager) ResetPinAttempts(ctx context.Context, key domain.SessionKey) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.ResetPinAttempts(ctx, key)
	})
}

// Store exposes the underlying store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
