package ports

import (
	"context"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

// CallParams carries the per-call inputs a backend operation needs. Fields
// not used by an operation are ignored by its payload builder.
type CallParams struct {
	Msisdn    string
	SessionID string
	Shortcode string

	CustomerID string
	PIN        string
	OldPIN     string
	NewPIN     string

	SourceAccount      string
	DestinationAccount string
	AccountNumber      string
	WalletNumber       string
	PhoneNumber        string
	Amount             string
	Network            string
	BillerType         string
	Remark             string
	TransferType       string
	RecipientName      string

	Category string
	ParentID string
}

// ServiceGateway dispatches one backend operation and classifies the reply.
// Implementations own no state across calls: every call gets a fresh
// encryption envelope and a fresh transaction identifier.
type ServiceGateway interface {
	Call(ctx context.Context, op domain.Operation, params CallParams) (*domain.Outcome, error)
}
