package domain

import "errors"

// ErrSessionNotFound is returned when a session key cannot be found in the
// store. Expired and never-created sessions are indistinguishable by design:
// either way the caller starts a fresh dialog.
var ErrSessionNotFound = errors.New("session not found")

// ErrLockedOut is returned when the PIN attempt counter reaches the
// configured maximum. The store destroys the session as part of the same
// operation; the condition is irreversible for that session key.
var ErrLockedOut = errors.New("maximum PIN attempts exceeded")

// ErrUnknownNode is returned when a node id does not resolve in the graph.
// After load-time validation this should be unreachable.
var ErrUnknownNode = errors.New("unknown menu node")

// ErrUnknownOperation is returned for a backend operation id the gateway
// does not recognize.
var ErrUnknownOperation = errors.New("unknown backend operation")
