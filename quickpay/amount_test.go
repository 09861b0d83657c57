package quickpay

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestConvertAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
	}{
		{"whole kroner", "100", "DKK", "10000"},
		{"two decimals", "12.34", "DKK", "1234"},
		{"usd", "9.99", "USD", "999"},
		{"truncates sub-minor fraction", "1.005", "EUR", "100"},
		{"unlisted currency defaults to 100", "2.50", "SEK", "250"},
		{"zero", "0", "GBP", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			if err != nil {
				t.Fatalf("bad test amount: %v", err)
			}
			minor, currency, err := ConvertAmount(amount, tt.currency)
			if err != nil {
				t.Fatalf("ConvertAmount(%s, %s) error: %v", tt.amount, tt.currency, err)
			}
			if minor != tt.want {
				t.Errorf("ConvertAmount(%s, %s) = %s, want %s", tt.amount, tt.currency, minor, tt.want)
			}
			if currency != tt.currency {
				t.Errorf("currency %s came back as %s", tt.currency, currency)
			}
		})
	}
}

func TestConvertAmountMissingCurrency(t *testing.T) {
	_, _, err := ConvertAmount(decimal.NewFromInt(100), "")
	if !errors.Is(err, ErrMissingCurrency) {
		t.Errorf("expected ErrMissingCurrency, got %v", err)
	}
}

func TestCurrencyMultiplier(t *testing.T) {
	for _, currency := range []string{"DKK", "USD", "EUR", "GBP", "NOK"} {
		if got := CurrencyMultiplier(currency); got != 100 {
			t.Errorf("CurrencyMultiplier(%s) = %d, want 100", currency, got)
		}
	}
}
