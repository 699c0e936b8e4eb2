package models

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ExternalSource identifies the metering feed an external record came from
type ExternalSource string

// Known external feeds
const (
	SourceETC      ExternalSource = "etc"
	SourceCharging ExternalSource = "charging"
)

// ParseExternalSource normalizes a free-text source tag. Unknown tags are kept as-is (lower-cased).
func ParseExternalSource(raw string) ExternalSource {
	tag := strings.ToLower(strings.TrimSpace(raw))
	switch tag {
	case "etc", "toll", "erp":
		return SourceETC
	case "charging", "charge", "ev", "ev charging":
		return SourceCharging
	}
	return ExternalSource(tag)
}

// ExternalRecord represents one transaction line reported by a toll/charging system
type ExternalRecord struct {
	Plate  string          `json:"plate"`
	Date   civil.Date      `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Source ExternalSource  `json:"source"`
	Note   string          `json:"note"`

	SourceLabel string `json:"source_label"` // File the record came from
}
