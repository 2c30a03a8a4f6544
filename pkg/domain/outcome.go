package domain

// Operation enumerates every backend call the gateway knows how to build.
// The dispatch over operations is exhaustive; an unrecognized id surfaces as
// ErrUnknownOperation instead of silently falling through.
type Operation string

const (
	OpAuthenticate    Operation = "authenticate"
	OpBalance         Operation = "balance"
	OpMiniStatement   Operation = "ministatement"
	OpTransfer        Operation = "transfer"
	OpAirtime         Operation = "airtime"
	OpBillPayment     Operation = "billpayment"
	OpValidateWallet  Operation = "validatewallet"
	OpValidateAccount Operation = "validateaccount"
	OpStaticData      Operation = "staticdata"
	OpChangePIN       Operation = "changepin"
)

// KnownOperation reports whether op is part of the closed operation set.
func KnownOperation(op Operation) bool {
	switch op {
	case OpAuthenticate, OpBalance, OpMiniStatement, OpTransfer, OpAirtime,
		OpBillPayment, OpValidateWallet, OpValidateAccount, OpStaticData,
		OpChangePIN:
		return true
	}
	return false
}

// MoneyMoving reports whether op submits a financial transaction. These
// operations are never retried automatically and are guarded against
// duplicate submission at the same node.
func (op Operation) MoneyMoving() bool {
	switch op {
	case OpTransfer, OpAirtime, OpBillPayment, OpChangePIN:
		return true
	}
	return false
}

// OutcomeStatus classifies a backend reply for control-flow purposes.
type OutcomeStatus string

const (
	// OutcomeSuccess means the backend accepted the operation.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeBusinessFailure means the backend rejected the operation with a
	// user-facing message (wrong PIN, insufficient funds). The dialog
	// continues along the node's error branch.
	OutcomeBusinessFailure OutcomeStatus = "business_failure"
	// OutcomeTransportFailure means the call never completed cleanly
	// (timeout, unreachable, undecryptable reply). The dialog aborts.
	OutcomeTransportFailure OutcomeStatus = "transport_failure"
)

// Well-known backend status codes.
const (
	StatusSuccess           = "000"
	StatusWrongPIN          = "091"
	StatusPinChangeRequired = "101"
)

// ResultRow is one control row of a backend ResultsData payload.
type ResultRow struct {
	ControlID    string `json:"controlId"`
	ControlValue string `json:"controlValue"`
}

// CustomerInfo is the identity extracted from an authentication reply.
type CustomerInfo struct {
	CustomerID   string
	CustomerName string
	MobileNumber string
	Email        string
	Accounts     []Account
}

// Outcome is the classified result of one backend call.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	// Code is the raw backend status code ("000", "091", ...).
	Code string `json:"code,omitempty"`
	// Message is the backend-provided user-facing text.
	Message string `json:"message,omitempty"`

	// TrialsRemaining is parsed best-effort from wrong-PIN messages.
	// nil means unknown; the status code stays authoritative.
	TrialsRemaining *int `json:"trialsRemaining,omitempty"`

	// PinChangeRequired is set on authentication replies with status 101 or
	// an expiry notice in the message.
	PinChangeRequired bool `json:"pinChangeRequired,omitempty"`

	// Customer is populated on successful authentication.
	Customer *CustomerInfo `json:"-"`

	// Rows carries ResultsData for balance/statement style operations.
	Rows []ResultRow `json:"rows,omitempty"`

	// TransactionID and Reference identify a completed financial transaction.
	TransactionID string `json:"transactionId,omitempty"`
	Reference     string `json:"reference,omitempty"`
}

// OK reports whether the outcome is a success.
func (o *Outcome) OK() bool {
	return o != nil && o.Status == OutcomeSuccess
}
