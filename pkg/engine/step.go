package engine

import (
	"context"
	"strconv"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
	"github.com/ebosacco/ussd-gateway/pkg/menu"
	"github.com/ebosacco/ussd-gateway/pkg/ports"
)

// step advances an authenticated session by one keystroke.
func (e *Engine) step(ctx context.Context, sess *domain.Session, input string) (Reply, error) {
	node, err := e.graph.Resolve(sess.CurrentNodeID)
	if err != nil {
		return Reply{}, err
	}

	if input == "" {
		// The carrier retransmitted without new input. Re-show the prompt;
		// for input nodes add a nudge so the empty keystroke isn't silent.
		message := ""
		if node.Kind == domain.NodeKindInput {
			message = msgInvalidInput
		}
		return e.renderCurrent(ctx, sess, message)
	}

	// Cross-cutting navigation wins over per-node choice tables.
	switch input {
	case menu.InputExit:
		return e.exit(ctx, sess, "")
	case menu.InputHome:
		sess.CurrentNodeID = e.graph.MainMenu()
		return e.renderCurrent(ctx, sess, "")
	case menu.InputBack:
		sess.CurrentNodeID = e.graph.BackTarget(sess.CurrentNodeID)
		return e.renderCurrent(ctx, sess, "")
	}

	switch node.Kind {
	case domain.NodeKindMenu:
		return e.stepMenu(ctx, sess, node, input)
	case domain.NodeKindInput:
		return e.stepInput(ctx, sess, node, input)
	case domain.NodeKindStatic:
		// Static nodes with a next accept any keystroke as "continue".
		if node.Next == "" {
			return e.exit(ctx, sess, "")
		}
		return e.advance(ctx, sess, node.Next, "")
	default:
		// A session resting on a service node means a previous request died
		// between dispatch and transition. Resume through the mark protocol.
		return e.advance(ctx, sess, node.ID, "")
	}
}

func (e *Engine) stepMenu(ctx context.Context, sess *domain.Session, node *domain.Node, input string) (Reply, error) {
	opt, ok := node.Options[input]
	if !ok {
		return e.renderCurrent(ctx, sess, msgInvalidChoice)
	}

	if opt.Exit {
		return e.exit(ctx, sess, opt.Text)
	}

	for field, value := range opt.Store {
		sess.SetField(field, value)
	}
	return e.advance(ctx, sess, opt.Next, "")
}

func (e *Engine) stepInput(ctx context.Context, sess *domain.Session, node *domain.Node, input string) (Reply, error) {
	value := input
	if node.Validation != nil {
		res, err := e.validator.Check(node.Validation.Type, input, node.Validation.Options)
		if err != nil {
			return Reply{}, err
		}
		if !res.Valid {
			message := node.ErrorMessage
			if message == "" {
				message = res.Message
			}
			return e.renderCurrent(ctx, sess, message)
		}
		if res.Normalized != "" {
			value = res.Normalized
		}
	}

	sess.SetField(node.StoreAs, value)
	return e.advance(ctx, sess, node.Next, "")
}

// advance moves the session to nextID, running through any chain of service
// nodes until it lands on a node the subscriber can see. The message
// accumulates backend feedback (failure reasons) to show above the prompt.
func (e *Engine) advance(ctx context.Context, sess *domain.Session, nextID, message string) (Reply, error) {
	for hop := 0; ; hop++ {
		if hop > maxServiceHops {
			return Reply{}, errServiceLoop
		}

		node, err := e.graph.Resolve(nextID)
		if err != nil {
			return Reply{}, err
		}
		sess.CurrentNodeID = node.ID

		if node.Kind != domain.NodeKindService {
			return e.finish(ctx, sess, node, message)
		}

		reply, next, msg, done, err := e.runService(ctx, sess, node)
		if err != nil || done {
			return reply, err
		}
		nextID = next
		if msg != "" {
			message = msg
		}
	}
}

// runService executes a service node's backend call under the duplicate
// suppression protocol. It returns either a final reply (done=true) or the
// next node id to advance to plus an optional message to display there.
func (e *Engine) runService(ctx context.Context, sess *domain.Session, node *domain.Node) (reply Reply, next string, message string, done bool, err error) {
	op := domain.Operation(node.Operation)
	store := e.sessions.Store()

	var outcome *domain.Outcome

	if op.MoneyMoving() {
		switch mark, ok := sess.Mark(node.ID); {
		case ok && mark.State == domain.ServiceMarkDone && mark.Outcome != nil:
			// Retransmitted keystroke: the transaction already ran. Reuse the
			// recorded outcome, never re-dispatch.
			outcome = mark.Outcome
		case ok && mark.State == domain.ServiceMarkPending:
			// A previous request died between dispatch and outcome. The
			// transaction may or may not have reached the core; fail safe.
			e.logger.Warn("service call in unknown state, aborting dialog",
				"msisdn", sess.Msisdn,
				"session_id", sess.SessionID,
				"node", node.ID,
				"operation", node.Operation,
			)
			if derr := store.Destroy(ctx, sess.Key()); derr != nil {
				return Reply{}, "", "", true, derr
			}
			return end(msgCallInFlight), "", "", true, nil
		default:
			// Persist the pending mark before dispatch so a crash mid-call is
			// distinguishable from a call that never started.
			sess.SetMark(node.ID, domain.ServiceMark{State: domain.ServiceMarkPending})
			if serr := store.Save(ctx, sess); serr != nil {
				return Reply{}, "", "", true, serr
			}

			outcome, err = e.gateway.Call(ctx, op, e.callParams(sess, node))
			if err != nil {
				return Reply{}, "", "", true, err
			}

			sess.SetMark(node.ID, domain.ServiceMark{State: domain.ServiceMarkDone, Outcome: outcome})
			if serr := store.Save(ctx, sess); serr != nil {
				return Reply{}, "", "", true, serr
			}
		}
	} else {
		outcome, err = e.gateway.Call(ctx, op, e.callParams(sess, node))
		if err != nil {
			return Reply{}, "", "", true, err
		}
	}

	switch outcome.Status {
	case domain.OutcomeSuccess:
		e.recordOutcome(sess, op, outcome)
		sess.ClearMark(node.ID)
		return Reply{}, node.OnSuccess, "", false, nil

	case domain.OutcomeBusinessFailure:
		sess.ClearMark(node.ID)
		return Reply{}, node.OnError, outcome.Message, false, nil

	default:
		e.logger.Error("backend call failed",
			"msisdn", sess.Msisdn,
			"session_id", sess.SessionID,
			"node", node.ID,
			"operation", node.Operation,
			"message", outcome.Message,
		)
		if derr := store.Destroy(ctx, sess.Key()); derr != nil {
			return Reply{}, "", "", true, derr
		}
		return end(msgGenericError), "", "", true, nil
	}
}

// recordOutcome projects a successful backend result into session fields so
// downstream nodes can interpolate it with ${field} placeholders.
func (e *Engine) recordOutcome(sess *domain.Session, op domain.Operation, outcome *domain.Outcome) {
	switch op {
	case domain.OpBalance:
		sess.SetField("balanceText", formatBalance(outcome.Rows))
	case domain.OpMiniStatement:
		sess.SetField("statementText", formatStatement(outcome.Rows))
	case domain.OpStaticData:
		sess.SetField("staticText", formatRows(outcome.Rows))
	case domain.OpValidateWallet, domain.OpValidateAccount:
		if name := rowValue(outcome.Rows, "NAME"); name != "" {
			sess.SetField("recipientName", name)
		}
	case domain.OpTransfer, domain.OpAirtime, domain.OpBillPayment:
		sess.SetField("receiptText", formatReceipt(outcome))
	}
	if outcome.TransactionID != "" {
		sess.SetField("transactionId", outcome.TransactionID)
	}
	if outcome.Reference != "" {
		sess.SetField("reference", outcome.Reference)
	}
}

// callParams assembles the gateway inputs from the session's collected
// fields. Field names are the graph's vocabulary; missing fields come
// through as empty strings and the payload builder serializes them as nulls.
func (e *Engine) callParams(sess *domain.Session, node *domain.Node) ports.CallParams {
	p := ports.CallParams{
		Msisdn:     sess.Msisdn,
		SessionID:  sess.SessionID,
		Shortcode:  sess.Shortcode,
		CustomerID: sess.CustomerID,

		PIN:    sess.Field("pin"),
		OldPIN: sess.Field("oldPin"),
		NewPIN: sess.Field("newPin"),

		SourceAccount:      e.resolveAccount(sess),
		DestinationAccount: sess.Field("destinationAccount"),
		AccountNumber:      sess.Field("accountNumber"),
		WalletNumber:       sess.Field("walletNumber"),
		PhoneNumber:        sess.Field("phoneNumber"),
		Amount:             sess.Field("amount"),
		Network:            sess.Field("network"),
		BillerType:         sess.Field("billerType"),
		Remark:             sess.Field("remark"),
		TransferType:       sess.Field("transferType"),
		RecipientName:      sess.Field("recipientName"),

		Category: sess.Field("category"),
		ParentID: sess.Field("parentId"),
	}

	// Wallet and airtime destinations default to the subscriber's own number
	// when the flow collected none (the common "self" shortcut).
	if p.WalletNumber == "" && p.PhoneNumber == "" {
		switch domain.Operation(node.Operation) {
		case domain.OpAirtime:
			p.PhoneNumber = sess.Msisdn
		case domain.OpValidateWallet:
			p.WalletNumber = sess.Msisdn
		}
	}
	return p
}

// resolveAccount maps the collected accountChoice (1-based menu index) to the
// customer's account id. An explicit sourceAccount field wins.
func (e *Engine) resolveAccount(sess *domain.Session) string {
	if acc := sess.Field("sourceAccount"); acc != "" {
		return acc
	}
	choice := sess.Field("accountChoice")
	if choice == "" {
		// Fall back to the default account when the flow never asked.
		for _, acc := range sess.Accounts {
			if acc.Default {
				return acc.AccountID
			}
		}
		if len(sess.Accounts) > 0 {
			return sess.Accounts[0].AccountID
		}
		return ""
	}
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 1 || idx > len(sess.Accounts) {
		return ""
	}
	return sess.Accounts[idx-1].AccountID
}
