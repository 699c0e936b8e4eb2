package models

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// MatchStatus is the reconciliation outcome of a claim row
type MatchStatus string

// Match status constants
const (
	MatchStatusMatched      MatchStatus = "matched"
	MatchStatusReceiptOnly  MatchStatus = "receipt_only"
	MatchStatusExternalOnly MatchStatus = "external_only"
)

// ClaimRow is one reconciled line of the reimbursement report.
// Rows are values: once emitted by the reconciler they are never modified.
type ClaimRow struct {
	Plate                 string              `json:"plate"`
	Date                  civil.Date          `json:"date"`
	ReimbursableAmount    decimal.Decimal     `json:"reimbursable_amount"`
	MatchStatus           MatchStatus         `json:"match_status"`
	SourceNote            string              `json:"source_note"`
	OriginalReceiptAmount decimal.NullDecimal `json:"original_receipt_amount"`
	NeedsAmount           bool                `json:"needs_amount"`
	ReceiptID             string              `json:"receipt_id,omitempty"`
	ExternalSources       []ExternalSource    `json:"external_sources,omitempty"`
}

// Summary counts the outcome of a reconciliation run
type Summary struct {
	Matched      int `json:"matched"`
	ReceiptOnly  int `json:"receipt_only"`
	ExternalOnly int `json:"external_only"`
	NeedsAmount  int `json:"needs_amount"`
	Skipped      int `json:"skipped"`
	Warnings     int `json:"warnings"`
}

// Total returns the number of emitted claim rows
func (s Summary) Total() int {
	return s.Matched + s.ReceiptOnly + s.ExternalOnly
}
