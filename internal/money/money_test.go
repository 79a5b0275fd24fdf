package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{name: "two decimals", amount: "1050.00", currency: "NGN", want: 105000},
		{name: "two decimals fractional", amount: "19.99", currency: "USD", want: 1999},
		{name: "two decimals rounds half up", amount: "10.005", currency: "GHS", want: 1001},
		{name: "two decimals rounds down", amount: "10.004", currency: "ZAR", want: 1000},
		{name: "zero decimals", amount: "1050", currency: "JPY", want: 1050},
		{name: "zero decimals rounds", amount: "1050.5", currency: "JPY", want: 1051},
		{name: "three decimals", amount: "12.345", currency: "KWD", want: 12345},
		{name: "three decimals rounds", amount: "1.2345", currency: "BHD", want: 1235},
		{name: "lower-case code", amount: "5000", currency: "ngn", want: 500000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToMinor(decimal.RequireFromString(tt.amount), tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinorRejectsOverflow(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
	}{
		{name: "wraps to a small charge", amount: "184467440737095516.17", currency: "NGN"},
		{name: "just past the limit", amount: "92233720368547758.08", currency: "USD"},
		{name: "three decimals", amount: "9223372036854775.808", currency: "KWD"},
		{name: "negative", amount: "-92233720368547758.09", currency: "NGN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToMinor(decimal.RequireFromString(tt.amount), tt.currency)
			assert.ErrorIs(t, err, ErrAmountOutOfRange)
		})
	}

	got, err := ToMinor(decimal.RequireFromString("92233720368547758.07"), "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)
}

func TestMinorRoundTrip(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
	}{
		{"1050.00", "NGN"},
		{"0.01", "KES"},
		{"1050", "JPY"},
		{"7.125", "KWD"},
		{"0", "BHD"},
	}

	for _, tt := range tests {
		t.Run(tt.currency+"_"+tt.amount, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			minor, err := ToMinor(amount, tt.currency)
			require.NoError(t, err)

			back, err := FromMinor(minor, tt.currency)
			require.NoError(t, err)
			assert.True(t, amount.Equal(back), "round trip %s -> %d -> %s", amount, minor, back)
		})
	}
}

func TestFromMinor(t *testing.T) {
	got, err := FromMinor(105000, "NGN")
	require.NoError(t, err)
	assert.Equal(t, "1050.00", got.StringFixed(2))

	got, err = FromMinor(12345, "KWD")
	require.NoError(t, err)
	assert.Equal(t, "12.345", got.String())
}

func TestUnsupportedCurrency(t *testing.T) {
	_, err := ToMinor(decimal.NewFromInt(1), "XXX")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	_, err = FromMinor(1, "")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestParse(t *testing.T) {
	got, err := Parse(" 1,050.00 ")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(1050)))

	_, err = Parse("")
	assert.Error(t, err)

	_, err = Parse("abc")
	assert.Error(t, err)

	_, err = Parse("-5")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "NGN 1050.00", Format(decimal.NewFromInt(1050), "NGN"))
	assert.Equal(t, "JPY 1050", Format(decimal.NewFromInt(1050), "JPY"))
	assert.Equal(t, "1050", Format(decimal.NewFromInt(1050), "XXX"))
}
