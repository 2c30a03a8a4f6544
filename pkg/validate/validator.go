// Package validate implements the pure input checks of the dialog engine.
// A Validator is read-only after construction and safe for concurrent use.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Validation type identifiers as they appear in menu definitions.
const (
	TypeNumeric    = "numeric"
	TypePhone      = "phone"
	TypeAmount     = "amount"
	TypeMenuOption = "menu_option"
	TypeAccount    = "account"
	TypePIN        = "pin"
)

// Result is the verdict on one raw keystroke. Normalized is the value to
// store when valid (for phone numbers, the canonical international form).
type Result struct {
	Valid      bool
	Normalized string
	Message    string
}

func ok(normalized string) Result {
	return Result{Valid: true, Normalized: normalized}
}

func invalid(message string) Result {
	return Result{Valid: false, Message: message}
}

// Validator checks raw keystrokes against declared input types.
type Validator struct {
	countryCode string
	networks    map[string][]string
	minAmount   int64
	maxAmount   int64
}

// Option configures the Validator.
type Option func(*Validator)

// WithCountryCode sets the prefix used to normalize local phone numbers.
func WithCountryCode(code string) Option {
	return func(v *Validator) { v.countryCode = code }
}

// WithNetworks sets the carrier-prefix sets keyed by network name.
func WithNetworks(networks map[string][]string) Option {
	return func(v *Validator) { v.networks = networks }
}

// WithAmountBounds sets the global amount limits used when a node declares
// none of its own.
func WithAmountBounds(min, max int64) Option {
	return func(v *Validator) { v.minAmount, v.maxAmount = min, max }
}

// New creates a Validator with Ugandan defaults.
func New(opts ...Option) *Validator {
	v := &Validator{
		countryCode: "256",
		networks:    map[string][]string{},
		minAmount:   100,
		maxAmount:   5000000,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Known reports whether typ is a supported validation type. The menu loader
// calls this at startup so an unknown type is a load error, never a runtime
// input error.
func (v *Validator) Known(typ string) bool {
	switch typ {
	case TypeNumeric, TypePhone, TypeAmount, TypeMenuOption, TypeAccount, TypePIN:
		return true
	}
	return false
}

// Check validates value against typ with type-specific options. It returns
// an error only for an unknown type or malformed options, which are
// configuration defects rather than user mistakes.
func (v *Validator) Check(typ, value string, options map[string]any) (Result, error) {
	switch typ {
	case TypeNumeric:
		var o lengthOptions
		if err := decode(options, &o); err != nil {
			return Result{}, err
		}
		return v.checkNumeric(value, o), nil
	case TypePhone:
		var o phoneOptions
		if err := decode(options, &o); err != nil {
			return Result{}, err
		}
		return v.checkPhone(value, o), nil
	case TypeAmount:
		var o amountOptions
		if err := decode(options, &o); err != nil {
			return Result{}, err
		}
		return v.checkAmount(value, o), nil
	case TypeMenuOption:
		var o menuOptions
		if err := decode(options, &o); err != nil {
			return Result{}, err
		}
		return v.checkMenuOption(value, o), nil
	case TypeAccount:
		var o lengthOptions
		if err := decode(options, &o); err != nil {
			return Result{}, err
		}
		return v.checkAccount(value, o), nil
	case TypePIN:
		return v.checkPIN(value), nil
	default:
		return Result{}, fmt.Errorf("unknown validation type: %q", typ)
	}
}

type lengthOptions struct {
	MinLength   int `mapstructure:"minLength"`
	MaxLength   int `mapstructure:"maxLength"`
	ExactLength int `mapstructure:"exactLength"`
}

type phoneOptions struct {
	Network  string   `mapstructure:"network"`
	Networks []string `mapstructure:"networks"`
}

type amountOptions struct {
	Min int64 `mapstructure:"min"`
	Max int64 `mapstructure:"max"`
}

type menuOptions struct {
	Choices []string `mapstructure:"choices"`
}

func decode(in map[string]any, out any) error {
	if len(in) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("invalid validation options: %w", err)
	}
	return nil
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (v *Validator) checkNumeric(value string, o lengthOptions) Result {
	if !digitsOnly(value) {
		return invalid("Must contain only digits")
	}
	if o.ExactLength > 0 && len(value) != o.ExactLength {
		return invalid(fmt.Sprintf("Must be exactly %d digits", o.ExactLength))
	}
	if o.MinLength > 0 && len(value) < o.MinLength {
		return invalid(fmt.Sprintf("Must be at least %d digits", o.MinLength))
	}
	if o.MaxLength > 0 && len(value) > o.MaxLength {
		return invalid(fmt.Sprintf("Cannot exceed %d digits", o.MaxLength))
	}
	return ok(value)
}

// checkPhone normalizes local-format numbers to international form before
// any prefix check, so stored values are always canonical.
func (v *Validator) checkPhone(value string, o phoneOptions) Result {
	if !digitsOnly(value) {
		return invalid("Must contain only digits")
	}

	normalized := value
	switch {
	case strings.HasPrefix(value, "0"):
		normalized = v.countryCode + value[1:]
	case !strings.HasPrefix(value, v.countryCode):
		normalized = v.countryCode + value
	}

	if len(normalized) != 12 {
		return invalid("Invalid phone number length")
	}

	networks := o.Networks
	if o.Network != "" {
		networks = append(networks, o.Network)
	}
	if len(networks) > 0 && !v.matchesNetwork(normalized, networks) {
		names := make([]string, len(networks))
		for i, n := range networks {
			names[i] = strings.ToUpper(n)
		}
		return invalid(fmt.Sprintf("Must be a valid %s number", strings.Join(names, "/")))
	}

	return ok(normalized)
}

func (v *Validator) matchesNetwork(number string, networks []string) bool {
	for _, network := range networks {
		for _, prefix := range v.networks[strings.ToLower(network)] {
			if strings.HasPrefix(number, prefix) {
				return true
			}
		}
	}
	return false
}

func (v *Validator) checkAmount(value string, o amountOptions) Result {
	if !digitsOnly(value) {
		return invalid("Must contain only digits")
	}
	amount, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return invalid("Invalid amount")
	}

	min, max := o.Min, o.Max
	if min == 0 {
		min = v.minAmount
	}
	if max == 0 {
		max = v.maxAmount
	}

	if amount < min {
		return invalid(fmt.Sprintf("Minimum amount is %d", min))
	}
	if amount > max {
		return invalid(fmt.Sprintf("Maximum amount is %d", max))
	}
	return ok(value)
}

func (v *Validator) checkMenuOption(value string, o menuOptions) Result {
	for _, choice := range o.Choices {
		if value == choice {
			return ok(value)
		}
	}
	return invalid("Invalid selection. Please try again.")
}

func (v *Validator) checkAccount(value string, o lengthOptions) Result {
	if !digitsOnly(value) {
		return invalid("Must contain only digits")
	}
	if o.MinLength > 0 && len(value) < o.MinLength {
		return invalid("Account number too short")
	}
	if o.MaxLength > 0 && len(value) > o.MaxLength {
		return invalid("Account number too long")
	}
	return ok(value)
}

func (v *Validator) checkPIN(value string) Result {
	if !digitsOnly(value) || len(value) != 4 {
		return invalid("PIN must be exactly 4 digits")
	}
	return ok(value)
}
