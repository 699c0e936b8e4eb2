package currency

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = civil.Date{Year: 2025, Month: 9, Day: 1}

func TestNewStaticRates(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		rates, err := NewStaticRates(map[string]string{"jpy": "0.0087", " MYR ": "0.29"})

		require.NoError(t, err)
		rate, err := rates.Rate(day, "JPY")
		require.NoError(t, err)
		assert.Equal(t, "0.0087", rate.String())
		_, err = rates.Rate(day, "myr")
		assert.NoError(t, err)
	})

	t.Run("not a number", func(t *testing.T) {
		_, err := NewStaticRates(map[string]string{"JPY": "abc"})
		assert.Error(t, err)
	})

	t.Run("zero rate", func(t *testing.T) {
		_, err := NewStaticRates(map[string]string{"JPY": "0"})
		assert.Error(t, err)
	})
}

func TestConverter_Convert(t *testing.T) {
	rates := StaticRates{
		"JPY": decimal.RequireFromString("0.0087"),
		"USD": decimal.RequireFromString("1.34567"),
	}
	conv := NewConverter("sgd", rates)

	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
		lossy    bool
		wantErr  bool
	}{
		{name: "base currency", amount: "45.5", currency: "SGD", want: "45.5"},
		{name: "empty currency is base", amount: "12.34", currency: "", want: "12.34"},
		{name: "exact conversion", amount: "18920", currency: "JPY", want: "164.604"},
		{name: "lossy conversion rounds half up", amount: "10.05", currency: "usd", want: "13.5240", lossy: true},
		{name: "unknown currency", amount: "1", currency: "EUR", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.Convert(day, decimal.RequireFromString(tt.amount), tt.currency)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedCurrency)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Amount), "got %s", got.Amount)
			assert.Equal(t, tt.lossy, got.Lossy)
		})
	}
}

func TestConverter_NoRateSource(t *testing.T) {
	conv := NewConverter("SGD", nil)

	assert.False(t, conv.NeedsConversion("sgd"))
	assert.True(t, conv.NeedsConversion("JPY"))

	_, err := conv.Convert(day, decimal.NewFromInt(1), "JPY")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}
