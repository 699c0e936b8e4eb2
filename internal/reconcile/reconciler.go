package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/models"
)

// Result is the output of one reconciliation: the ordered claim rows plus the
// diagnostics of every input record that was skipped.
type Result struct {
	Rows        []models.ClaimRow   `json:"rows"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
	Summary     models.Summary      `json:"summary"`
}

// Reconciler merges receipt records with external transaction records.
// It holds no state between calls and is safe for concurrent use.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{logger: logger}
}

// Reconcile matches receipts to external records on (normalized plate, date).
//
// Rows derived from receipts come first in receipt input order, followed by
// external records nobody claimed, in their input order. All external
// records sharing a receipt's key are summed into that receipt's row and the
// external amount takes precedence over the receipt amount. Records missing a
// plate or date, or carrying a negative amount, are skipped and reported.
func (r *Reconciler) Reconcile(receipts []models.ReceiptRecord, externals []models.ExternalRecord) *Result {
	result := &Result{
		Rows: make([]models.ClaimRow, 0, len(receipts)+len(externals)),
	}

	index := newExternalIndex(len(externals))
	var externalDiags []models.Diagnostic
	for i, ext := range externals {
		if diag, ok := validateExternal(i, ext); !ok {
			externalDiags = append(externalDiags, diag)
			continue
		}
		index.add(ext)
	}

	claimedBy := make(map[Key]string)
	for i, receipt := range receipts {
		if diag, ok := validateReceipt(i, receipt); !ok {
			result.Diagnostics = append(result.Diagnostics, diag)
			continue
		}

		key := KeyOf(receipt.Plate, receipt.Date)
		if matched := index.consume(key); len(matched) > 0 {
			claimedBy[key] = receiptLabel(i, receipt)
			result.Rows = append(result.Rows, matchedRow(receipt, matched))
			result.Summary.Matched++
			continue
		}

		row := receiptOnlyRow(receipt, claimedBy[key])
		if row.NeedsAmount {
			result.Summary.NeedsAmount++
		}
		result.Rows = append(result.Rows, row)
		result.Summary.ReceiptOnly++
	}

	for _, ext := range index.remaining() {
		result.Rows = append(result.Rows, externalOnlyRow(ext))
		result.Summary.ExternalOnly++
	}

	result.Diagnostics = append(result.Diagnostics, externalDiags...)
	result.Summary.Skipped = models.CountSkipped(result.Diagnostics)

	for _, d := range result.Diagnostics {
		r.logger.Warn("Skipped malformed record",
			zap.String("origin", d.Origin),
			zap.String("source", d.Source),
			zap.Int("index", d.Index),
			zap.String("field", d.Field),
			zap.String("reason", d.Message))
	}
	r.logger.Debug("Reconciliation complete",
		zap.Int("receipts", len(receipts)),
		zap.Int("externals", len(externals)),
		zap.Int("matched", result.Summary.Matched),
		zap.Int("receipt_only", result.Summary.ReceiptOnly),
		zap.Int("external_only", result.Summary.ExternalOnly),
		zap.Int("skipped", result.Summary.Skipped))

	return result
}

func matchedRow(receipt models.ReceiptRecord, matched []models.ExternalRecord) models.ClaimRow {
	total := decimal.Zero
	for _, ext := range matched {
		total = total.Add(ext.Amount)
	}

	sources := sourcesOf(matched)
	var note string
	original := decimal.NullDecimal{}
	if receipt.IsPlaceholder {
		note = fmt.Sprintf("%s amount fills placeholder receipt", joinSources(sources))
	} else {
		original = decimal.NewNullDecimal(receipt.Amount)
		note = fmt.Sprintf("%s amount replaces receipt amount %s", joinSources(sources), receipt.Amount.String())
	}
	note += " | " + describeExternals(matched)

	return models.ClaimRow{
		Plate:                 strings.TrimSpace(receipt.Plate),
		Date:                  receipt.Date,
		ReimbursableAmount:    total,
		MatchStatus:           models.MatchStatusMatched,
		SourceNote:            note,
		OriginalReceiptAmount: original,
		ReceiptID:             receipt.ReceiptID,
		ExternalSources:       sources,
	}
}

func receiptOnlyRow(receipt models.ReceiptRecord, claimedBy string) models.ClaimRow {
	row := models.ClaimRow{
		Plate:       strings.TrimSpace(receipt.Plate),
		Date:        receipt.Date,
		MatchStatus: models.MatchStatusReceiptOnly,
		ReceiptID:   receipt.ReceiptID,
	}

	if receipt.IsPlaceholder {
		row.ReimbursableAmount = decimal.Zero
		row.NeedsAmount = true
		row.SourceNote = "placeholder receipt: amount required"
	} else {
		row.ReimbursableAmount = receipt.Amount
		row.OriginalReceiptAmount = decimal.NewNullDecimal(receipt.Amount)
		row.SourceNote = "receipt amount"
	}

	if desc := describeReceipt(receipt); desc != "" {
		row.SourceNote += " | " + desc
	}
	if claimedBy != "" {
		row.SourceNote += " | external charges already claimed by " + claimedBy
	}
	return row
}

func externalOnlyRow(ext models.ExternalRecord) models.ClaimRow {
	return models.ClaimRow{
		Plate:              strings.TrimSpace(ext.Plate),
		Date:               ext.Date,
		ReimbursableAmount: ext.Amount,
		MatchStatus:        models.MatchStatusExternalOnly,
		SourceNote:         "no matching receipt | " + describeExternals([]models.ExternalRecord{ext}),
		ExternalSources:    []models.ExternalSource{ext.Source},
	}
}

func validateReceipt(i int, receipt models.ReceiptRecord) (models.Diagnostic, bool) {
	diag := models.Diagnostic{
		Kind:   models.DiagnosticMalformedRecord,
		Origin: models.OriginReceipt,
		Source: receipt.SourceLabel,
		Index:  i + 1,
	}
	switch {
	case NormalizePlate(receipt.Plate) == "":
		diag.Field, diag.Message = "plate", "missing plate"
	case receipt.Date.IsZero() || !receipt.Date.IsValid():
		diag.Field, diag.Message = "date", "missing or invalid date"
	case !receipt.IsPlaceholder && receipt.Amount.IsNegative():
		diag.Field, diag.Message = "amount", "negative amount "+receipt.Amount.String()
	default:
		return models.Diagnostic{}, true
	}
	return diag, false
}

func validateExternal(i int, ext models.ExternalRecord) (models.Diagnostic, bool) {
	diag := models.Diagnostic{
		Kind:   models.DiagnosticMalformedRecord,
		Origin: models.OriginExternal,
		Source: ext.SourceLabel,
		Index:  i + 1,
	}
	switch {
	case NormalizePlate(ext.Plate) == "":
		diag.Field, diag.Message = "plate", "missing plate"
	case ext.Date.IsZero() || !ext.Date.IsValid():
		diag.Field, diag.Message = "date", "missing or invalid date"
	case ext.Amount.IsNegative():
		diag.Field, diag.Message = "amount", "negative amount "+ext.Amount.String()
	default:
		return models.Diagnostic{}, true
	}
	return diag, false
}

// sourcesOf returns the distinct sources of matched records in first-seen order
func sourcesOf(records []models.ExternalRecord) []models.ExternalSource {
	seen := make(map[models.ExternalSource]bool, len(records))
	var sources []models.ExternalSource
	for _, rec := range records {
		if !seen[rec.Source] {
			seen[rec.Source] = true
			sources = append(sources, rec.Source)
		}
	}
	return sources
}

func joinSources(sources []models.ExternalSource) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		if s == "" {
			s = "external"
		}
		parts = append(parts, string(s))
	}
	return strings.Join(parts, "+")
}

func describeExternals(records []models.ExternalRecord) string {
	parts := make([]string, 0, len(records))
	for _, rec := range records {
		label := string(rec.Source)
		if label == "" {
			label = "external"
		}
		if note := strings.TrimSpace(rec.Note); note != "" {
			label += ": " + note
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "; ")
}

func describeReceipt(receipt models.ReceiptRecord) string {
	var parts []string
	for _, p := range []string{receipt.ReceiptID, receipt.Merchant, receipt.Category, receipt.Note} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func receiptLabel(i int, receipt models.ReceiptRecord) string {
	if receipt.ReceiptID != "" {
		return "receipt " + receipt.ReceiptID
	}
	return fmt.Sprintf("receipt #%d", i+1)
}
