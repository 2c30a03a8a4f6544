package ports

import (
	"context"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

// SessionStore persists in-flight dialogs. Every successful Load and Save
// re-arms the TTL window from "now" (sliding expiration), so an idle dialog
// is reclaimed passively.
type SessionStore interface {
	// Create persists a fresh session under its key.
	Create(ctx context.Context, session *domain.Session) error

	// Load retrieves the session for a key. Returns domain.ErrSessionNotFound
	// both when the key never existed and when it expired.
	Load(ctx context.Context, key domain.SessionKey) (*domain.Session, error)

	// Save persists the session and re-applies the TTL.
	Save(ctx context.Context, session *domain.Session) error

	// IncrementPinAttempts atomically bumps the PIN attempt counter and
	// returns the new count. Crossing the configured maximum destroys the
	// session in the same atomic operation and returns domain.ErrLockedOut
	// alongside the count.
	IncrementPinAttempts(ctx context.Context, key domain.SessionKey) (int, error)

	// ResetPinAttempts zeroes the counter after a confirmed successful PIN.
	ResetPinAttempts(ctx context.Context, key domain.SessionKey) error

	// Destroy deletes the session and any subordinate keys.
	Destroy(ctx context.Context, key domain.SessionKey) error
}
