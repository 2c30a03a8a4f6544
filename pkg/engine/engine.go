// Package engine implements the dialog state machine. One Handle call
// processes one keystroke: load or create the session, validate the input
// against the current node, run any backend side effects, compute the next
// node, persist, and render the reply.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ebosacco/ussd-gateway/internal/logging"
	"github.com/ebosacco/ussd-gateway/pkg/domain"
	"github.com/ebosacco/ussd-gateway/pkg/menu"
	"github.com/ebosacco/ussd-gateway/pkg/ports"
	"github.com/ebosacco/ussd-gateway/pkg/session"
	"github.com/ebosacco/ussd-gateway/pkg/validate"
)

// User-facing messages. The generic error text is the only thing a
// subscriber ever sees for an internal failure.
const (
	msgGenericError    = "An error occurred. Please try again later."
	msgSessionExpired  = "Session expired. Please start again."
	msgGoodbye         = "Thank you for using EBO SACCO."
	msgAuthUnavailable = "Authentication failed. Please try again later."
	msgLockedOut       = "You have exceeded the maximum number of PIN attempts. Please try again later."
	msgInvalidChoice   = "Invalid selection. Please try again."
	msgInvalidInput    = "Invalid input. Please try again."
	msgCallInFlight    = "Your previous request could not be confirmed. Please dial again later."
	msgPinExpiredNote  = "Note: Your PIN has expired. Please visit a branch to change it."
)

// maxServiceHops caps transparent service-node chains so a misconfigured
// graph cannot loop the engine within one request.
const maxServiceHops = 8

// Request is one inbound keystroke.
type Request struct {
	Msisdn    string
	SessionID string
	Shortcode string
	Input     string
}

// Key returns the session identity of the request.
func (r Request) Key() domain.SessionKey {
	return domain.SessionKey{Msisdn: r.Msisdn, SessionID: r.SessionID, Shortcode: r.Shortcode}
}

// Reply is the outbound response. Continue maps to the carrier's CON
// prefix; otherwise END terminates the dialog.
type Reply struct {
	Continue bool
	Text     string
}

// String renders the wire form.
func (r Reply) String() string {
	if r.Continue {
		return "CON " + r.Text
	}
	return "END " + r.Text
}

func cont(text string) Reply { return Reply{Continue: true, Text: text} }
func end(text string) Reply  { return Reply{Continue: false, Text: text} }

// Engine orchestrates one dialog step per request. The graph and validator
// are read-only; all mutable state lives in the session store.
type Engine struct {
	graph     *menu.Graph
	sessions  *session.Manager
	gateway   ports.ServiceGateway
	validator *validate.Validator
	logger    *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine. All dependencies are explicit; tests substitute an
// in-memory store and a fake gateway.
func New(graph *menu.Graph, sessions *session.Manager, gateway ports.ServiceGateway, validator *validate.Validator, opts ...Option) *Engine {
	e := &Engine{
		graph:     graph,
		sessions:  sessions,
		gateway:   gateway,
		validator: validator,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle processes one keystroke. It never returns an error: anything that
// goes wrong internally is logged with full context and collapses to the
// generic END reply, so no failure detail ever reaches the subscriber.
func (e *Engine) Handle(ctx context.Context, req Request) Reply {
	key := req.Key()

	var reply Reply
	err := e.sessions.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		reply, err = e.handle(ctx, key, req.Input)
		return err
	})
	if err != nil {
		e.logger.Error("request failed",
			"msisdn", req.Msisdn,
			"session_id", req.SessionID,
			"shortcode", req.Shortcode,
			"err", err,
		)
		return end(msgGenericError)
	}
	return reply
}

// handle runs under the session key's lock.
func (e *Engine) handle(ctx context.Context, key domain.SessionKey, input string) (Reply, error) {
	store := e.sessions.Store()

	sess, err := store.Load(ctx, key)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return e.handleNewSession(ctx, key, input)
	}
	if err != nil {
		return Reply{}, err
	}

	if !sess.Authenticated {
		// An unauthenticated session resting anywhere but the entry node
		// means the dialog state is inconsistent (hijack or partial expiry).
		if sess.CurrentNodeID != e.graph.Entry() {
			if err := store.Destroy(ctx, key); err != nil {
				return Reply{}, err
			}
			return end(msgSessionExpired), nil
		}
		if input == "" {
			return e.renderCurrent(ctx, sess, "")
		}
		return e.authenticate(ctx, sess, input)
	}

	return e.step(ctx, sess, input)
}

func (e *Engine) handleNewSession(ctx context.Context, key domain.SessionKey, input string) (Reply, error) {
	store := e.sessions.Store()
	sess := domain.NewSession(key, e.graph.Entry())
	if err := store.Create(ctx, sess); err != nil {
		return Reply{}, err
	}

	if input == "" {
		return e.renderCurrent(ctx, sess, "")
	}
	// The carrier delivered input on the very first callback (dial strings
	// like *284*1234#). Treat it as the PIN.
	return e.authenticate(ctx, sess, input)
}

// authenticate runs the combined GETCUSTOMER login call. Status 000 and 101
// both authenticate; 101 additionally flags a required PIN change.
func (e *Engine) authenticate(ctx context.Context, sess *domain.Session, pin string) (Reply, error) {
	store := e.sessions.Store()
	key := sess.Key()

	if res, err := e.validator.Check(validate.TypePIN, pin, nil); err != nil {
		return Reply{}, err
	} else if !res.Valid {
		return e.renderCurrent(ctx, sess, res.Message)
	}

	outcome, err := e.gateway.Call(ctx, domain.OpAuthenticate, ports.CallParams{
		Msisdn:    sess.Msisdn,
		SessionID: sess.SessionID,
		Shortcode: sess.Shortcode,
		PIN:       pin,
	})
	if err != nil {
		return Reply{}, err
	}

	switch outcome.Status {
	case domain.OutcomeSuccess:
		if err := store.ResetPinAttempts(ctx, key); err != nil {
			return Reply{}, err
		}
		sess.Authenticated = true
		sess.PinAttempts = 0
		sess.PinChangeRequired = outcome.PinChangeRequired
		if outcome.Customer != nil {
			sess.CustomerID = outcome.Customer.CustomerID
			sess.CustomerName = outcome.Customer.CustomerName
			sess.Accounts = outcome.Customer.Accounts
			sess.SetField("accountsText", formatAccounts(outcome.Customer.Accounts))
		}
		sess.SetField("pin", pin)
		sess.CurrentNodeID = e.graph.MainMenu()

		prefix := ""
		if sess.PinChangeRequired {
			prefix = msgPinExpiredNote
		}
		return e.renderCurrent(ctx, sess, prefix)

	case domain.OutcomeBusinessFailure:
		// The backend counts attempts too. Zero trials remaining means it has
		// already locked the PIN; re-prompting would invite calls against a
		// dead credential. nil stays on the local counter (unknown, not
		// unlimited).
		if outcome.TrialsRemaining != nil && *outcome.TrialsRemaining == 0 {
			e.logger.Warn("pin locked by backend",
				"msisdn", sess.Msisdn,
				"session_id", sess.SessionID,
			)
			if err := store.Destroy(ctx, key); err != nil {
				return Reply{}, err
			}
			return end(msgLockedOut), nil
		}

		count, err := store.IncrementPinAttempts(ctx, key)
		if errors.Is(err, domain.ErrLockedOut) {
			e.logger.Warn("pin lockout",
				"msisdn", sess.Msisdn,
				"session_id", sess.SessionID,
				"attempts", count,
			)
			return end(msgLockedOut), nil
		}
		if err != nil {
			return Reply{}, err
		}
		sess.PinAttempts = count

		message := outcome.Message
		if message == "" {
			message = "Invalid PIN. Please try again."
		}
		return e.renderCurrent(ctx, sess, message)

	default:
		if err := store.Destroy(ctx, key); err != nil {
			return Reply{}, err
		}
		return end(msgAuthUnavailable), nil
	}
}

// renderCurrent persists the session and re-renders its current node with an
// optional message line above the prompt.
func (e *Engine) renderCurrent(ctx context.Context, sess *domain.Session, message string) (Reply, error) {
	node, err := e.graph.Resolve(sess.CurrentNodeID)
	if err != nil {
		return Reply{}, err
	}
	if err := e.sessions.Store().Save(ctx, sess); err != nil {
		return Reply{}, err
	}

	text := menu.Render(node, sess)
	if message != "" {
		text = message + "\n\n" + text
	}
	return cont(text), nil
}

// finish settles the session on its final node for this request and renders
// the reply. Terminal nodes destroy the session and reply END.
func (e *Engine) finish(ctx context.Context, sess *domain.Session, node *domain.Node, message string) (Reply, error) {
	text := menu.Render(node, sess)
	if message != "" {
		text = message + "\n\n" + text
	}

	if node.Terminal() {
		if err := e.sessions.Store().Destroy(ctx, sess.Key()); err != nil {
			return Reply{}, err
		}
		return end(text), nil
	}

	if err := e.sessions.Store().Save(ctx, sess); err != nil {
		return Reply{}, err
	}
	return cont(text), nil
}

// exit destroys the session and ends the dialog.
func (e *Engine) exit(ctx context.Context, sess *domain.Session, message string) (Reply, error) {
	if err := e.sessions.Store().Destroy(ctx, sess.Key()); err != nil {
		return Reply{}, err
	}
	if message == "" {
		message = msgGoodbye
	}
	return end(message), nil
}

var errServiceLoop = fmt.Errorf("service node chain exceeded %d hops", maxServiceHops)
