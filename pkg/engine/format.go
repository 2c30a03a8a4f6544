package engine

import (
	"fmt"
	"strings"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

// formatAccounts renders a customer's accounts as a numbered pick list. The
// ordering is stable so the 1-based menu index maps back to the same account
// on the next keystroke.
func formatAccounts(accounts []domain.Account) string {
	var b strings.Builder
	for i, acc := range accounts {
		if i > 0 {
			b.WriteByte('\n')
		}
		label := acc.AliasName
		if label == "" {
			label = acc.AccountType
		}
		if label != "" {
			fmt.Fprintf(&b, "%d. %s %s", i+1, label, acc.MaskedAccount)
		} else {
			fmt.Fprintf(&b, "%d. %s", i+1, acc.MaskedAccount)
		}
	}
	return b.String()
}

// formatBalance renders a balance reply. Backends that send a ready-made
// display line use the BALTEXT (or BALANCE) control; otherwise every row is
// shown.
func formatBalance(rows []domain.ResultRow) string {
	if text := rowValue(rows, "BALTEXT"); text != "" {
		return text
	}
	if text := rowValue(rows, "BALANCE"); text != "" {
		return "Balance: " + text
	}
	return formatRows(rows)
}

// formatStatement renders the five most recent statement lines.
func formatStatement(rows []domain.ResultRow) string {
	if len(rows) > 5 {
		rows = rows[:5]
	}
	return formatRows(rows)
}

// formatRows renders backend ResultsData control rows as display lines.
// Rows arrive pre-ordered; an empty control id carries a bare text line.
func formatRows(rows []domain.ResultRow) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		if row.ControlID == "" {
			b.WriteString(row.ControlValue)
			continue
		}
		fmt.Fprintf(&b, "%s: %s", titleCase(row.ControlID), row.ControlValue)
	}
	return b.String()
}

// rowValue returns the value of the first row whose control id matches
// (case-insensitive), or "".
func rowValue(rows []domain.ResultRow, controlID string) string {
	for _, row := range rows {
		if strings.EqualFold(row.ControlID, controlID) {
			return row.ControlValue
		}
	}
	return ""
}

// formatReceipt renders the confirmation block of a completed transaction.
func formatReceipt(outcome *domain.Outcome) string {
	var lines []string
	if outcome.Message != "" {
		lines = append(lines, outcome.Message)
	}
	if outcome.TransactionID != "" {
		lines = append(lines, "Transaction ID: "+outcome.TransactionID)
	}
	if outcome.Reference != "" {
		lines = append(lines, "Reference: "+outcome.Reference)
	}
	if len(lines) == 0 {
		lines = append(lines, "Transaction completed successfully.")
	}
	return strings.Join(lines, "\n")
}

// titleCase turns a backend control id like "AVAILABLEBALANCE" or
// "available_balance" into a display label.
func titleCase(id string) string {
	id = strings.ReplaceAll(id, "_", " ")
	words := strings.Fields(strings.ToLower(id))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
