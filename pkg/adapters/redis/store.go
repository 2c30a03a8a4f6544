// Package redis implements the session store and distributed locker on
// Redis. Sessions are JSON blobs under a sliding TTL; the PIN attempt
// counter lives in a sibling key so it can be incremented atomically.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

// incrementScript bumps the attempt counter and, when the maximum is
// reached, destroys the session and the counter in the same atomic step.
// KEYS[1] = session key, KEYS[2] = attempts key.
// ARGV[1] = max attempts, ARGV[2] = ttl seconds.
// Returns {count, locked}.
var incrementScript = backend.NewScript(`
local attempts = redis.call("INCR", KEYS[2])
if attempts >= tonumber(ARGV[1]) then
	redis.call("DEL", KEYS[1], KEYS[2])
	return {attempts, 1}
end
redis.call("EXPIRE", KEYS[2], ARGV[2])
if redis.call("EXISTS", KEYS[1]) == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return {attempts, 0}
`)

// Store implements ports.SessionStore on Redis.
type Store struct {
	client      *backend.Client
	prefix      string
	ttl         time.Duration
	maxAttempts int
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the sliding idle window for sessions.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithMaxPinAttempts sets the lockout threshold.
func WithMaxPinAttempts(max int) Option {
	return func(s *Store) { s.maxAttempts = max }
}

// New creates a Store with its own client.
func New(addr, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client:      client,
		prefix:      "ussd:session:",
		ttl:         30 * time.Minute,
		maxAttempts: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(key domain.SessionKey) string {
	return s.prefix + key.Msisdn + ":" + key.SessionID + ":" + key.Shortcode
}

func (s *Store) attemptsKey(key domain.SessionKey) string {
	return s.key(key) + ":attempts"
}

// Create persists a fresh session.
func (s *Store) Create(ctx context.Context, session *domain.Session) error {
	return s.Save(ctx, session)
}

// Save persists the session and re-arms the TTL from now.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	session.LastActivity = time.Now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.Key()), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load retrieves a session and extends its TTL (sliding expiration). A
// missing and an expired key are indistinguishable by design.
func (s *Store) Load(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Expire(ctx, s.key(key), s.ttl)
	pipe.Expire(ctx, s.attemptsKey(key), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to refresh session ttl: %w", err)
	}

	return &session, nil
}

// IncrementPinAttempts atomically bumps the counter. Reaching the maximum
// destroys the session inside the same script and returns ErrLockedOut with
// the final count.
func (s *Store) IncrementPinAttempts(ctx context.Context, key domain.SessionKey) (int, error) {
	res, err := incrementScript.Run(ctx, s.client,
		[]string{s.key(key), s.attemptsKey(key)},
		s.maxAttempts, int(s.ttl.Seconds()),
	).Slice()
	if err != nil {
		return 0, fmt.Errorf("failed to increment pin attempts: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("unexpected increment script reply: %v", res)
	}

	count := int(res[0].(int64))
	locked := res[1].(int64) == 1
	if locked {
		return count, domain.ErrLockedOut
	}
	return count, nil
}

// ResetPinAttempts zeroes the counter after a successful PIN entry.
func (s *Store) ResetPinAttempts(ctx context.Context, key domain.SessionKey) error {
	if err := s.client.Del(ctx, s.attemptsKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset pin attempts: %w", err)
	}
	return nil
}

// Destroy deletes the session and its subordinate keys.
func (s *Store) Destroy(ctx context.Context, key domain.SessionKey) error {
	if err := s.client.Del(ctx, s.key(key), s.attemptsKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
