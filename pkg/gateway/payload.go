package gateway

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
	"github.com/ebosacco/ussd-gateway/pkg/ports"
)

// Form identifiers on the backend wire.
const (
	formGetCustomer = "GETCUSTOMER"
	formPaybill     = "PAYBILL"
	formValidate    = "VALIDATE"
	formDBCall      = "DBCALL"
	formChangePIN   = "CHANGEPIN"
)

// Merchant identifiers for paybill-family operations.
const (
	merchantBalance   = "BALANCE"
	merchantTransfer  = "TRANSFER"
	merchantStatement = "STATEMENT"
)

var airtimeMerchants = map[string]string{
	"mtn":    "MTNUGAIRTIME",
	"airtel": "AIRTELUG",
}

var billerMerchants = map[string]string{
	"NWSC":      "007001003",
	"UMEME":     "007001012",
	"DSTV":      "007001001",
	"GOTV":      "007001014",
	"STARTIMES": "007001015",
}

// formSection is the fixed field grid every backend form shares. Absent
// fields must serialize as explicit nulls, hence the pointer types.
type formSection struct {
	LoginType     *string `json:"LOGINTYPE,omitempty"`
	PinType       *string `json:"PINTYPE,omitempty"`
	Header        *string `json:"HEADER,omitempty"`
	BankAccountID *string `json:"BANKACCOUNTID"`
	MerchantID    *string `json:"MERCHANTID"`
	AccountID     *string `json:"ACCOUNTID"`
	Description   *string `json:"TRXDESCRIPTION"`
	Amount        *string `json:"AMOUNT"`
	MobileNumber  *string `json:"MOBILENUMBER"`
	InfoField1    *string `json:"INFOFIELD1"`
	InfoField2    *string `json:"INFOFIELD2"`
	InfoField3    *string `json:"INFOFIELD3"`
	InfoField4    *string `json:"INFOFIELD4"`
	InfoField5    *string `json:"INFOFIELD5"`
	InfoField6    *string `json:"INFOFIELD6"`
	InfoField7    *string `json:"INFOFIELD7"`
	InfoField8    *string `json:"INFOFIELD8"`
	InfoField9    *string `json:"INFOFIELD9"`
}

type encryptedFields struct {
	OldPIN     *string `json:"OLDPIN,omitempty"`
	NewPIN     *string `json:"NEWPIN,omitempty"`
	ConfirmPIN *string `json:"CONFIRMPIN,omitempty"`
	PIN        *string `json:"PIN"`
}

// request is the canonical backend payload shape shared by all forms.
type request struct {
	TrxSource     string  `json:"TRXSOURCE"`
	Codebase      string  `json:"CODEBASE"`
	AppName       string  `json:"APPNAME"`
	VersionNumber string  `json:"VERSIONNUMBER"`
	CustomerID    string  `json:"CUSTOMERID"`
	MobileNumber  string  `json:"MOBILENUMBER"`
	Shortcode     string  `json:"SHORTCODE"`
	FormID        string  `json:"FORMID"`
	SessionID     string  `json:"SESSIONID"`
	UniqueID      string  `json:"UNIQUEID"`
	Country       string  `json:"COUNTRY"`
	BankID        string  `json:"BANKID"`
	MerchantID    *string `json:"MERCHANTID"`

	GetCustomer *formSection `json:"GETCUSTOMER,omitempty"`
	Paybill     *formSection `json:"PAYBILL,omitempty"`
	Validate    *formSection `json:"VALIDATE,omitempty"`
	DynamicForm *formSection `json:"DYNAMICFORM,omitempty"`
	ChangePIN   *formSection `json:"CHANGEPIN,omitempty"`

	EncryptedFields encryptedFields `json:"ENCRYPTEDFIELDS"`
}

// AppIdentity is the deployment identity stamped onto every payload.
type AppIdentity struct {
	Name     string
	Version  string
	Codebase string
	BankID   string
	Country  string
}

func str(s string) *string { return &s }

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newTransactionID generates the single-use UNIQUEID for one backend call.
func newTransactionID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:8]
}

func (g *Gateway) baseRequest(formID, customerID string, params ports.CallParams) request {
	return request{
		TrxSource:     "USSD",
		Codebase:      g.app.Codebase,
		AppName:       g.app.Name,
		VersionNumber: g.app.Version,
		CustomerID:    customerID,
		MobileNumber:  params.Msisdn,
		Shortcode:     params.Shortcode,
		FormID:        formID,
		SessionID:     params.SessionID,
		UniqueID:      newTransactionID(),
		Country:       g.app.Country,
		BankID:        g.app.BankID,
	}
}

func (g *Gateway) encryptPIN(pin string) (*string, error) {
	if pin == "" {
		return nil, nil
	}
	enc, err := g.pin.Encrypt(pin)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt pin: %w", err)
	}
	return &enc, nil
}

// buildRequest maps an operation to its canonical payload. The switch is
// exhaustive over domain.Operation; an unknown id is a configuration defect
// surfaced as domain.ErrUnknownOperation.
func (g *Gateway) buildRequest(op domain.Operation, params ports.CallParams) (request, error) {
	switch op {
	case domain.OpAuthenticate:
		pin, err := g.encryptPIN(params.PIN)
		if err != nil {
			return request{}, err
		}
		req := g.baseRequest(formGetCustomer, "", params)
		req.GetCustomer = &formSection{}
		req.EncryptedFields = encryptedFields{PIN: pin}
		return req, nil

	case domain.OpBalance:
		req := g.baseRequest(formPaybill, params.CustomerID, params)
		req.MerchantID = str(merchantBalance)
		req.Paybill = &formSection{
			BankAccountID: strOrNil(params.SourceAccount),
			MerchantID:    str(merchantBalance),
		}
		return req, nil

	case domain.OpMiniStatement:
		req := g.baseRequest(formPaybill, params.CustomerID, params)
		req.MerchantID = str(merchantStatement)
		req.Paybill = &formSection{
			BankAccountID: strOrNil(params.SourceAccount),
			MerchantID:    str(merchantStatement),
		}
		return req, nil

	case domain.OpTransfer:
		pin, err := g.encryptPIN(params.PIN)
		if err != nil {
			return request{}, err
		}
		transferType := params.TransferType
		if transferType == "" {
			transferType = "OTHERACCOUNT"
		}
		req := g.baseRequest(formPaybill, params.CustomerID, params)
		req.MerchantID = str(merchantTransfer)
		req.Paybill = &formSection{
			BankAccountID: strOrNil(params.SourceAccount),
			MerchantID:    str(merchantTransfer),
			AccountID:     strOrNil(params.DestinationAccount),
			Amount:        strOrNil(params.Amount),
			InfoField1:    str(params.Remark),
			InfoField2:    str(transferType),
			InfoField3:    str(params.RecipientName),
		}
		req.EncryptedFields = encryptedFields{PIN: pin}
		return req, nil

	case domain.OpAirtime:
		merchant, ok := airtimeMerchants[strings.ToLower(params.Network)]
		if !ok {
			return request{}, fmt.Errorf("unknown airtime network %q", params.Network)
		}
		pin, err := g.encryptPIN(params.PIN)
		if err != nil {
			return request{}, err
		}
		network := strings.ToUpper(params.Network)
		req := g.baseRequest(formPaybill, params.CustomerID, params)
		req.MerchantID = str(merchant)
		req.Paybill = &formSection{
			BankAccountID: strOrNil(params.SourceAccount),
			MerchantID:    str(merchant),
			AccountID:     strOrNil(params.PhoneNumber),
			Amount:        strOrNil(params.Amount),
			InfoField1:    str(network + " AIRTIME"),
			InfoField2:    str(network),
		}
		req.EncryptedFields = encryptedFields{PIN: pin}
		return req, nil

	case domain.OpBillPayment:
		merchant, ok := billerMerchants[strings.ToUpper(params.BillerType)]
		if !ok {
			merchant = "OTHER"
		}
		pin, err := g.encryptPIN(params.PIN)
		if err != nil {
			return request{}, err
		}
		req := g.baseRequest(formPaybill, params.CustomerID, params)
		req.MerchantID = str(merchant)
		req.Paybill = &formSection{
			BankAccountID: strOrNil(params.SourceAccount),
			MerchantID:    str(merchant),
			AccountID:     strOrNil(params.AccountNumber),
			Amount:        strOrNil(params.Amount),
			InfoField1:    str(strings.ToUpper(params.BillerType)),
		}
		req.EncryptedFields = encryptedFields{PIN: pin}
		return req, nil

	case domain.OpValidateWallet:
		req := g.baseRequest(formValidate, params.CustomerID, params)
		req.Validate = &formSection{
			AccountID:  strOrNil(params.WalletNumber),
			InfoField1: strOrNil(strings.ToLower(params.Network)),
		}
		return req, nil

	case domain.OpValidateAccount:
		req := g.baseRequest(formValidate, params.CustomerID, params)
		req.Validate = &formSection{
			AccountID:  strOrNil(params.AccountNumber),
			InfoField1: strOrNil(strings.ToUpper(params.BillerType)),
		}
		return req, nil

	case domain.OpStaticData:
		req := g.baseRequest(formDBCall, "", params)
		req.DynamicForm = &formSection{
			Header:     str("GETUSSDSTATICDATA"),
			InfoField1: strOrNil(params.Category),
			InfoField2: strOrNil(params.ParentID),
		}
		return req, nil

	case domain.OpChangePIN:
		oldPin, err := g.encryptPIN(params.OldPIN)
		if err != nil {
			return request{}, err
		}
		newPin, err := g.encryptPIN(params.NewPIN)
		if err != nil {
			return request{}, err
		}
		req := g.baseRequest(formChangePIN, params.CustomerID, params)
		req.ChangePIN = &formSection{}
		req.EncryptedFields = encryptedFields{
			OldPIN:     oldPin,
			NewPIN:     newPin,
			ConfirmPIN: newPin,
		}
		return req, nil
	}

	return request{}, fmt.Errorf("%w: %s", domain.ErrUnknownOperation, op)
}

// endpoint maps an operation to its backend service family URL.
func (g *Gateway) endpoint(op domain.Operation) (string, error) {
	var url string
	switch op {
	case domain.OpAuthenticate, domain.OpChangePIN:
		url = g.endpoints.Authenticate
	case domain.OpBalance, domain.OpMiniStatement, domain.OpTransfer:
		url = g.endpoints.Bank
	case domain.OpAirtime, domain.OpBillPayment:
		url = g.endpoints.Purchase
	case domain.OpValidateWallet, domain.OpValidateAccount:
		url = g.endpoints.Validate
	case domain.OpStaticData:
		url = g.endpoints.Other
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownOperation, op)
	}
	if url == "" {
		return "", fmt.Errorf("no endpoint configured for operation %s", op)
	}
	return url, nil
}
