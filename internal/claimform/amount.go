package claimform

import "github.com/shopspring/decimal"

// DisplayPlaces is the number of decimal places amounts carry on the form
const DisplayPlaces = 3

// QuantizeAmount rounds an amount half-up to DisplayPlaces. It is applied once,
// when a value is displayed; sums are always taken on unrounded values.
func QuantizeAmount(d decimal.Decimal) decimal.Decimal {
	// Round is half away from zero, which equals half-up for the non-negative amounts a claim carries
	return d.Round(DisplayPlaces)
}

// FormatAmount returns the display text of an amount, e.g. "45.500"
func FormatAmount(d decimal.Decimal) string {
	return QuantizeAmount(d).StringFixed(DisplayPlaces)
}
