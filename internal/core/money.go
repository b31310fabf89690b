package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a user-supplied amount string into an exact
// decimal. A comma decimal separator is accepted alongside the dot.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatEUR renders an amount for user-facing messages, two decimal
// places, euro suffix.
func FormatEUR(d decimal.Decimal) string {
	return d.StringFixed(2) + " €"
}
