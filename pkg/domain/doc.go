// Package domain holds the core types of the USSD dialog gateway: sessions,
// menu nodes, backend outcomes, and the sentinel errors shared across
// packages. It has no dependencies on adapters or transports.
package domain
