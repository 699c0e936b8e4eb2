package models

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// PlaceholderPlate is used for image uploads whose plate could not be derived
const PlaceholderPlate = "UNKNOWN"

// ReceiptRecord represents one parsed invoice/expense line from OCR output
type ReceiptRecord struct {
	ReceiptID     string          `json:"receipt_id"`
	Plate         string          `json:"plate"`
	Date          civil.Date      `json:"date"`
	Amount        decimal.Decimal `json:"amount"`   // Meaningless when IsPlaceholder is set
	Currency      string          `json:"currency"` // Empty means base currency
	Merchant      string          `json:"merchant"`
	Category      string          `json:"category"`
	Note          string          `json:"note"`
	SourceLabel   string          `json:"source_label"` // File the record came from
	IsPlaceholder bool            `json:"is_placeholder"`
}
