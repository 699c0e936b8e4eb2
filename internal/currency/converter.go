package currency

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ConversionPlaces is the intermediate precision of converted amounts
const ConversionPlaces = 4

// ErrUnsupportedCurrency is returned when a rate source has no rate for a currency
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// RateSource returns the multiplier that turns one unit of a currency into
// the base currency on a given day
type RateSource interface {
	Rate(date civil.Date, currency string) (decimal.Decimal, error)
}

// StaticRates is a fixed rate table keyed by upper-case currency code.
// The rate does not depend on the date.
type StaticRates map[string]decimal.Decimal

// NewStaticRates builds a table from text rates, e.g. {"JPY": "0.0087"}
func NewStaticRates(raw map[string]string) (StaticRates, error) {
	rates := make(StaticRates, len(raw))
	for code, text := range raw {
		rate, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("invalid rate for %s: must be positive", code)
		}
		rates[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	return rates, nil
}

// Rate returns the table rate for currency
func (s StaticRates) Rate(_ civil.Date, currency string) (decimal.Decimal, error) {
	rate, ok := s[strings.ToUpper(currency)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	return rate, nil
}

// Conversion is the outcome of converting one amount
type Conversion struct {
	Amount   decimal.Decimal // in base currency, quantized to ConversionPlaces
	Rate     decimal.Decimal
	Exact    decimal.Decimal // unquantized product
	Lossy    bool            // Amount differs from Exact
	Currency string
}

// Converter turns foreign-currency amounts into the base currency
type Converter struct {
	base  string
	rates RateSource
}

// NewConverter creates a converter into base using rates
func NewConverter(base string, rates RateSource) *Converter {
	return &Converter{base: strings.ToUpper(strings.TrimSpace(base)), rates: rates}
}

// Base returns the base currency code
func (c *Converter) Base() string { return c.base }

// NeedsConversion reports whether an amount in currency must be converted.
// An empty currency means the base currency.
func (c *Converter) NeedsConversion(currency string) bool {
	code := strings.ToUpper(strings.TrimSpace(currency))
	return code != "" && code != c.base
}

// Convert multiplies amount by the day's rate and rounds half-up to four places
func (c *Converter) Convert(date civil.Date, amount decimal.Decimal, currency string) (Conversion, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if !c.NeedsConversion(code) {
		return Conversion{Amount: amount, Rate: decimal.NewFromInt(1), Exact: amount, Currency: c.base}, nil
	}
	if c.rates == nil {
		return Conversion{}, fmt.Errorf("%w: %s (no rate source)", ErrUnsupportedCurrency, code)
	}

	rate, err := c.rates.Rate(date, code)
	if err != nil {
		return Conversion{}, err
	}

	exact := amount.Mul(rate)
	quantized := exact.Round(ConversionPlaces)
	return Conversion{
		Amount:   quantized,
		Rate:     rate,
		Exact:    exact,
		Lossy:    !quantized.Equal(exact),
		Currency: code,
	}, nil
}
