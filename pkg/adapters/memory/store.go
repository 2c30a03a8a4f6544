// Package memory implements an in-memory session store with the same
// contract as the Redis adapter: sliding TTL, atomic PIN-attempt
// accounting, lockout destroying the session. It backs tests and local
// development without a Redis instance.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

type entry struct {
	data     []byte
	attempts int
	expires  time.Time
}

// Store implements ports.SessionStore in process memory.
type Store struct {
	mu          sync.Mutex
	sessions    map[domain.SessionKey]*entry
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the sliding idle window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithMaxPinAttempts sets the lockout threshold.
func WithMaxPinAttempts(max int) Option {
	return func(s *Store) { s.maxAttempts = max }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions:    make(map[domain.SessionKey]*entry),
		ttl:         30 * time.Minute,
		maxAttempts: 3,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// live returns the entry for key if it exists and has not expired. Expired
// entries are reaped lazily. Caller must hold mu.
func (s *Store) live(key domain.SessionKey) *entry {
	e, ok := s.sessions[key]
	if !ok {
		return nil
	}
	if s.now().After(e.expires) {
		delete(s.sessions, key)
		return nil
	}
	return e
}

// Create persists a fresh session.
func (s *Store) Create(ctx context.Context, session *domain.Session) error {
	return s.Save(ctx, session)
}

// Save persists the session and re-arms the TTL.
func (s *Store) Save(_ context.Context, session *domain.Session) error {
	session.LastActivity = s.now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := session.Key()
	e := s.live(key)
	if e == nil {
		e = &entry{}
		s.sessions[key] = e
	}
	e.data = data
	e.expires = s.now().Add(s.ttl)
	return nil
}

// Load retrieves a session and extends its TTL.
func (s *Store) Load(_ context.Context, key domain.SessionKey) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return nil, domain.ErrSessionNotFound
	}
	e.expires = s.now().Add(s.ttl)

	var session domain.Session
	if err := json.Unmarshal(e.data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// IncrementPinAttempts bumps the counter under the store lock; lockout
// destroys the session in the same step.
func (s *Store) IncrementPinAttempts(_ context.Context, key domain.SessionKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		// Counter survives briefly even without a session, matching the
		// Redis script behavior of counting before checking existence.
		e = &entry{expires: s.now().Add(s.ttl)}
		s.sessions[key] = e
	}

	e.attempts++
	count := e.attempts
	if count >= s.maxAttempts {
		delete(s.sessions, key)
		return count, domain.ErrLockedOut
	}
	e.expires = s.now().Add(s.ttl)
	return count, nil
}

// ResetPinAttempts zeroes the counter.
func (s *Store) ResetPinAttempts(_ context.Context, key domain.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil {
		e.attempts = 0
	}
	return nil
}

// Destroy deletes the session.
func (s *Store) Destroy(_ context.Context, key domain.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Len reports the number of live sessions (tests).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.sessions {
		if s.live(key) != nil {
			n++
		}
	}
	return n
}
