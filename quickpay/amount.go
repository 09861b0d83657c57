package quickpay

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrMissingCurrency is returned when an amount is converted without a
// currency code.
var ErrMissingCurrency = errors.New("quickpay: missing currency code")

// ErrZeroMultiplier is returned when a currency resolves to a zero
// multiplier. The default table never produces it, but the contract
// handles it rather than emitting a zero amount.
var ErrZeroMultiplier = errors.New("quickpay: currency multiplier is zero")

// currencyMultipliers maps a currency code to its minor-unit multiplier.
var currencyMultipliers = map[string]int64{
	"DKK": 100,
	"USD": 100,
	"EUR": 100,
	"GBP": 100,
}

// CurrencyMultiplier returns the minor-unit multiplier for a currency.
// Unlisted currencies fall back to 100. That default is deliberate and
// matches the wire protocol, but it is wrong for zero-decimal currencies
// such as JPY; list them explicitly before accepting them.
func CurrencyMultiplier(currency string) int64 {
	if multiplier, ok := currencyMultipliers[currency]; ok {
		return multiplier
	}
	return 100
}

// ConvertAmount converts a decimal amount into the integer minor-unit
// string the protocol requires, truncating any fraction left after
// multiplying. Decimal arithmetic avoids float drift on monetary values.
func ConvertAmount(amount decimal.Decimal, currency string) (string, string, error) {
	if currency == "" {
		return "", "", ErrMissingCurrency
	}
	multiplier := CurrencyMultiplier(currency)
	if multiplier == 0 {
		return "", "", ErrZeroMultiplier
	}
	minor := amount.Mul(decimal.NewFromInt(multiplier)).Truncate(0)
	return minor.String(), currency, nil
}
