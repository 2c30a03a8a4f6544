// Package ports defines the driven-side interfaces of the gateway: session
// persistence, distributed locking, and the core-banking service gateway.
// Adapters under pkg/adapters implement them; the engine depends only on
// these interfaces, which keeps tests on in-memory fakes.
package ports
