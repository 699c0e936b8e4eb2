package ingestion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// AmountPlaces is the precision amounts are kept at after ingestion.
// Text carrying more places (float cell artifacts such as 12.340000000000002)
// is rounded half-up and reported.
const AmountPlaces = 4

var dateLayouts = []string{"2006/01/02", "2006.01.02", "2006-01-02 15:04:05", time.RFC3339}

// parseDate reads a calendar date. allowSerial accepts Excel serial day numbers.
func parseDate(raw string, allowSerial bool) (civil.Date, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return civil.Date{}, errors.New("missing date")
	}

	if d, err := civil.ParseDate(text); err == nil {
		return d, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return civil.DateOf(t), nil
		}
	}

	if allowSerial {
		if serial, err := strconv.ParseFloat(text, 64); err == nil && serial > 0 {
			t, err := excelize.ExcelDateToTime(serial, false)
			if err == nil {
				return civil.DateOf(t), nil
			}
		}
	}
	return civil.Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", text)
}

// parseAmount reads a money amount such as "1,200.00" or "$45.5".
// lossy is set when the value had to be rounded to AmountPlaces.
func parseAmount(raw string) (amount decimal.Decimal, lossy bool, err error) {
	clean := strings.NewReplacer(",", "", "$", "", " ", "").Replace(strings.TrimSpace(raw))
	if clean == "" {
		return decimal.Zero, false, errors.New("missing amount")
	}

	amount, err = decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid amount %q", raw)
	}

	if amount.Exponent() < -AmountPlaces {
		rounded := amount.Round(AmountPlaces)
		return rounded, !rounded.Equal(amount), nil
	}
	return amount, false, nil
}
