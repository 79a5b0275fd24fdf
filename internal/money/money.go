// Package money converts between decimal amounts and the integer minor units
// the processor expects (kobo, pesewas, cents, fils).
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrAmountOutOfRange    = errors.New("amount out of range")
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

type Currency struct {
	Code     string
	Name     string
	Symbol   string
	Decimals int32
}

var currencies = map[string]Currency{
	"NGN": {Code: "NGN", Name: "Nigeria Naira", Symbol: "₦", Decimals: 2},
	"GHS": {Code: "GHS", Name: "Ghana Cedis", Symbol: "₵", Decimals: 2},
	"ZAR": {Code: "ZAR", Name: "South Africa Rand", Symbol: "R", Decimals: 2},
	"KES": {Code: "KES", Name: "Kenyan Shillings", Symbol: "KSh", Decimals: 2},
	"XOF": {Code: "XOF", Name: "West African CFA franc", Symbol: "CFA", Decimals: 2},
	"EGP": {Code: "EGP", Name: "Egyptian Pound", Symbol: "E£", Decimals: 2},
	"USD": {Code: "USD", Name: "US Dollar", Symbol: "$", Decimals: 2},
	"JPY": {Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Decimals: 0},
	"KWD": {Code: "KWD", Name: "Kuwaiti Dinar", Symbol: "KD", Decimals: 3},
	"BHD": {Code: "BHD", Name: "Bahraini Dinar", Symbol: "BD", Decimals: 3},
}

// Lookup finds a currency by ISO code, case-insensitively.
func Lookup(code string) (Currency, error) {
	c, ok := currencies[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// ToMinor exports amount as integer minor units, rounding half away from zero
// at the currency's precision.
func ToMinor(amount decimal.Decimal, code string) (int64, error) {
	c, err := Lookup(code)
	if err != nil {
		return 0, err
	}
	minor := amount.Round(c.Decimals).Shift(c.Decimals)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %s %s", ErrAmountOutOfRange, amount, c.Code)
	}
	return minor.IntPart(), nil
}

// FromMinor imports a minor-unit amount back into a decimal amount.
func FromMinor(minor int64, code string) (decimal.Decimal, error) {
	c, err := Lookup(code)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(minor, -c.Decimals), nil
}

// Parse reads a submitted amount such as "1,050.00".
func Parse(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %q", raw)
	}
	return d, nil
}

// Format renders amount at the currency's precision, e.g. "NGN 1050.00".
func Format(amount decimal.Decimal, code string) string {
	c, err := Lookup(code)
	if err != nil {
		return amount.String()
	}
	return c.Code + " " + amount.StringFixed(c.Decimals)
}
