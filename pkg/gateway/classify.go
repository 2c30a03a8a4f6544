package gateway

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

type wireCustomer struct {
	CustomerID   string `json:"CustomerID"`
	FirstName    string `json:"FirstName"`
	LastName     string `json:"LastName"`
	MobileNumber string `json:"MobileNumber"`
	EmailID      string `json:"EmailID"`
}

type wireAccount struct {
	BankAccountID  string `json:"BankAccountID"`
	MaskedAccount  string `json:"MaskedAccount"`
	AliasName      string `json:"AliasName"`
	CurrencyID     string `json:"CurrencyID"`
	AccountType    string `json:"AccountType"`
	DefaultAccount bool   `json:"DefaultAccount"`
}

type wireRow struct {
	ControlID    string `json:"controlId"`
	ControlValue string `json:"controlValue"`
}

type wireResponse struct {
	Status          string         `json:"Status"`
	Message         string         `json:"Message"`
	CustomerDetails []wireCustomer `json:"CustomerDetails"`
	Accounts        []wireAccount  `json:"Accounts"`
	ResultsData     []wireRow      `json:"ResultsData"`
	TransactionID   string         `json:"TransactionID"`
	Reference       string         `json:"Reference"`
}

// trialsPattern extracts the remaining-attempts count from wrong-PIN
// messages like "Invalid PIN, remaining with 2 trials". Extraction is
// best-effort enrichment only: the status code stays authoritative, and an
// unparseable message means "trials unknown", never "infinite trials".
var trialsPattern = regexp.MustCompile(`remaining with (\d+) trials?`)

func parseTrials(message string) *int {
	m := trialsPattern.FindStringSubmatch(message)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// pinExpiryNotice reports whether a success message warns about an expired
// PIN. Some backend revisions signal PIN change on status 000 via text only.
func pinExpiryNotice(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "expired") ||
		strings.Contains(lower, "changepin") ||
		strings.Contains(lower, "change")
}

// classify turns a decrypted reply into a control-flow outcome.
func classify(op domain.Operation, body []byte) (*domain.Outcome, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("malformed backend response: %w", err)
	}

	out := &domain.Outcome{
		Code:          wire.Status,
		Message:       wire.Message,
		TransactionID: wire.TransactionID,
		Reference:     wire.Reference,
	}
	for _, row := range wire.ResultsData {
		out.Rows = append(out.Rows, domain.ResultRow{
			ControlID:    row.ControlID,
			ControlValue: row.ControlValue,
		})
	}

	switch wire.Status {
	case domain.StatusSuccess:
		out.Status = domain.OutcomeSuccess
		if op == domain.OpAuthenticate && pinExpiryNotice(wire.Message) {
			out.PinChangeRequired = true
		}
	case domain.StatusPinChangeRequired:
		// Authenticated, but the PIN must be changed.
		out.Status = domain.OutcomeSuccess
		out.PinChangeRequired = true
	case domain.StatusWrongPIN:
		out.Status = domain.OutcomeBusinessFailure
		out.TrialsRemaining = parseTrials(wire.Message)
	default:
		out.Status = domain.OutcomeBusinessFailure
	}

	if out.Status == domain.OutcomeSuccess && (op == domain.OpAuthenticate) {
		out.Customer = extractCustomer(wire)
	}
	return out, nil
}

func extractCustomer(wire wireResponse) *domain.CustomerInfo {
	info := &domain.CustomerInfo{}
	if len(wire.CustomerDetails) > 0 {
		c := wire.CustomerDetails[0]
		info.CustomerID = c.CustomerID
		info.CustomerName = strings.TrimSpace(c.FirstName + " " + c.LastName)
		info.MobileNumber = c.MobileNumber
		info.Email = c.EmailID
	}
	for _, acc := range wire.Accounts {
		info.Accounts = append(info.Accounts, domain.Account{
			AccountID:     acc.BankAccountID,
			MaskedAccount: acc.MaskedAccount,
			AliasName:     acc.AliasName,
			Currency:      acc.CurrencyID,
			AccountType:   acc.AccountType,
			Default:       acc.DefaultAccount,
		})
	}
	return info
}
