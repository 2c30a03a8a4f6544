package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

func TestFormatAccounts(t *testing.T) {
	got := formatAccounts([]domain.Account{
		{AccountID: "A1", MaskedAccount: "01xxxx89", AccountType: "Current"},
		{AccountID: "A2", MaskedAccount: "02xxxx12", AliasName: "Savings"},
		{AccountID: "A3", MaskedAccount: "03xxxx77"},
	})
	assert.Equal(t, "1. Current 01xxxx89\n2. Savings 02xxxx12\n3. 03xxxx77", got)
}

func TestFormatRows(t *testing.T) {
	got := formatRows([]domain.ResultRow{
		{ControlID: "AVAILABLE_BALANCE", ControlValue: "150000 UGX"},
		{ControlID: "", ControlValue: "As of 01/09/2026"},
	})
	assert.Equal(t, "Available Balance: 150000 UGX\nAs of 01/09/2026", got)
}

func TestFormatBalance(t *testing.T) {
	// Ready-made display line wins.
	got := formatBalance([]domain.ResultRow{
		{ControlID: "BALTEXT", ControlValue: "Avail: 150,000 UGX"},
		{ControlID: "BALANCE", ControlValue: "150000"},
	})
	assert.Equal(t, "Avail: 150,000 UGX", got)

	got = formatBalance([]domain.ResultRow{
		{ControlID: "BALANCE", ControlValue: "150000"},
	})
	assert.Equal(t, "Balance: 150000", got)

	got = formatBalance([]domain.ResultRow{
		{ControlID: "LEDGER", ControlValue: "150000"},
	})
	assert.Equal(t, "Ledger: 150000", got)
}

func TestFormatStatementCapsAtFive(t *testing.T) {
	var rows []domain.ResultRow
	for i := 0; i < 8; i++ {
		rows = append(rows, domain.ResultRow{ControlValue: "line"})
	}
	got := formatStatement(rows)
	assert.Equal(t, "line\nline\nline\nline\nline", got)
}

func TestFormatReceipt(t *testing.T) {
	got := formatReceipt(&domain.Outcome{
		Message:       "Transfer completed",
		TransactionID: "TX123",
		Reference:     "REF9",
	})
	assert.Equal(t, "Transfer completed\nTransaction ID: TX123\nReference: REF9", got)

	got = formatReceipt(&domain.Outcome{})
	assert.Equal(t, "Transaction completed successfully.", got)
}

func TestRowValue(t *testing.T) {
	rows := []domain.ResultRow{{ControlID: "Name", ControlValue: "Jane Doe"}}
	assert.Equal(t, "Jane Doe", rowValue(rows, "NAME"))
	assert.Empty(t, rowValue(rows, "MISSING"))
}
