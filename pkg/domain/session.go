package domain

import "time"

// SessionKey identifies one in-flight dialog. The carrier may reuse a
// session id across shortcodes, so all three parts participate in the key.
type SessionKey struct {
	Msisdn    string
	SessionID string
	Shortcode string
}

// ServiceMarkState tracks whether a node's backend call has been dispatched.
type ServiceMarkState string

const (
	// ServiceMarkPending means the call was dispatched but no outcome was
	// recorded yet (the process may have died mid-call).
	ServiceMarkPending ServiceMarkState = "pending"
	// ServiceMarkDone means the call completed and its outcome is cached.
	ServiceMarkDone ServiceMarkState = "done"
)

// ServiceMark records the backend-call state of a service node within a
// session. It is the duplicate-suppression mechanism: a retransmitted
// keystroke that lands on the same node reuses the cached outcome instead of
// resubmitting the transaction.
type ServiceMark struct {
	State   ServiceMarkState `json:"state"`
	Outcome *Outcome         `json:"outcome,omitempty"`
}

// Account is one bank account attached to an authenticated customer.
type Account struct {
	AccountID     string `json:"accountId"`
	MaskedAccount string `json:"maskedAccount"`
	AliasName     string `json:"aliasName,omitempty"`
	Currency      string `json:"currency,omitempty"`
	AccountType   string `json:"accountType,omitempty"`
	Default       bool   `json:"default,omitempty"`
}

// Session is the persisted state of one dialog. It is the only continuity
// between keystrokes; everything else is recomputed per request.
type Session struct {
	Msisdn    string `json:"msisdn"`
	SessionID string `json:"sessionId"`
	Shortcode string `json:"shortcode"`

	CurrentNodeID string            `json:"currentNodeId"`
	Data          map[string]string `json:"data"`

	Authenticated     bool      `json:"authenticated"`
	CustomerID        string    `json:"customerId,omitempty"`
	CustomerName      string    `json:"customerName,omitempty"`
	Accounts          []Account `json:"accounts,omitempty"`
	PinChangeRequired bool      `json:"pinChangeRequired,omitempty"`

	// PinAttempts mirrors the store-side counter. The authoritative value is
	// whatever SessionStore.IncrementPinAttempts returns; this field only
	// exists for observability.
	PinAttempts int `json:"pinAttempts"`

	// ServiceMarks is keyed by node id.
	ServiceMarks map[string]ServiceMark `json:"serviceMarks,omitempty"`

	Language     string    `json:"language"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// NewSession creates a fresh unauthenticated session positioned at entryNode.
func NewSession(key SessionKey, entryNode string) *Session {
	now := time.Now().UTC()
	return &Session{
		Msisdn:        key.Msisdn,
		SessionID:     key.SessionID,
		Shortcode:     key.Shortcode,
		CurrentNodeID: entryNode,
		Data:          make(map[string]string),
		Language:      "en",
		CreatedAt:     now,
		LastActivity:  now,
	}
}

// Key returns the identity triple of the session.
func (s *Session) Key() SessionKey {
	return SessionKey{Msisdn: s.Msisdn, SessionID: s.SessionID, Shortcode: s.Shortcode}
}

// Field returns a collected field value, or "" if absent.
func (s *Session) Field(name string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[name]
}

// SetField stores a collected (already normalized) field value.
func (s *Session) SetField(name, value string) {
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[name] = value
}

// Mark returns the service mark for a node, if any.
func (s *Session) Mark(nodeID string) (ServiceMark, bool) {
	m, ok := s.ServiceMarks[nodeID]
	return m, ok
}

// SetMark records a service mark for a node.
func (s *Session) SetMark(nodeID string, mark ServiceMark) {
	if s.ServiceMarks == nil {
		s.ServiceMarks = make(map[string]ServiceMark)
	}
	s.ServiceMarks[nodeID] = mark
}

// ClearMark removes a node's service mark (called when the session moves on).
func (s *Session) ClearMark(nodeID string) {
	delete(s.ServiceMarks, nodeID)
}
