package ingestion

import (
	"fmt"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/models"
)

var receiptColumns = []string{"receipt_id", "date", "plate", "merchant", "amount", "category"}

// Placeholder receipt labels
const (
	placeholderMerchant = "image_upload"
	placeholderCategory = "image_placeholder"
)

func (l *Loader) receiptsFromTable(t *table) *Batch {
	batch := &Batch{}
	for _, r := range t.rows {
		skip := func(field, msg string) {
			batch.Diagnostics = append(batch.Diagnostics, models.Diagnostic{
				Kind:    models.DiagnosticMalformedRecord,
				Origin:  models.OriginReceipt,
				Source:  t.name,
				Index:   r.index,
				Field:   field,
				Message: msg,
			})
			l.logger.Warn("Skipping receipt row",
				zap.String("file", t.name),
				zap.Int("index", r.index),
				zap.String("field", field),
				zap.String("reason", msg))
		}

		if missing := missingFields(r.values, receiptColumns); missing != "" {
			skip(missing, "missing field")
			continue
		}

		date, err := parseDate(r.values["date"], t.excel)
		if err != nil {
			skip("date", err.Error())
			continue
		}
		amount, lossy, err := parseAmount(r.values["amount"])
		if err != nil {
			skip("amount", err.Error())
			continue
		}
		if lossy {
			batch.Diagnostics = append(batch.Diagnostics, precisionWarning(models.OriginReceipt, t.name, r.index, r.values["amount"], amount.String()))
		}

		receipt := models.ReceiptRecord{
			ReceiptID:   r.values["receipt_id"],
			Plate:       r.values["plate"],
			Date:        date,
			Amount:      amount,
			Currency:    strings.ToUpper(r.values["currency"]),
			Merchant:    r.values["merchant"],
			Category:    r.values["category"],
			Note:        r.values["note"],
			SourceLabel: t.name,
		}

		if l.converter != nil && l.converter.NeedsConversion(receipt.Currency) {
			conv, err := l.converter.Convert(date, amount, receipt.Currency)
			if err != nil {
				skip("currency", err.Error())
				continue
			}
			if conv.Lossy {
				batch.Diagnostics = append(batch.Diagnostics, precisionWarning(models.OriginReceipt, t.name, r.index,
					fmt.Sprintf("%s %s x %s", amount, conv.Currency, conv.Rate), conv.Amount.String()))
			}
			receipt.Note = joinNote(receipt.Note, fmt.Sprintf("%s %s at %s", amount, conv.Currency, conv.Rate))
			receipt.Amount = conv.Amount
			receipt.Currency = l.converter.Base()
		}

		batch.Receipts = append(batch.Receipts, receipt)
	}
	return batch
}

// placeholder builds the receipt that stands for an image or PDF page.
// A file named <plate>_<YYYY-MM-DD>.<ext> supplies plate and date.
func (l *Loader) placeholder(name, suffix string) models.ReceiptRecord {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	plate, date, ok := plateAndDate(stem)
	if !ok {
		plate = models.PlaceholderPlate
		date = civil.DateOf(l.now())
	}

	id := stem
	if id == "" {
		id = "upload"
	}
	return models.ReceiptRecord{
		ReceiptID:     id + suffix,
		Plate:         plate,
		Date:          date,
		Merchant:      placeholderMerchant,
		Category:      placeholderCategory,
		SourceLabel:   name,
		IsPlaceholder: true,
	}
}

// pdfPlaceholders yields one placeholder receipt per PDF page
func (l *Loader) pdfPlaceholders(f File) (*Batch, error) {
	doc, err := fitz.NewFromMemory(f.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", f.Name, ErrUnreadable, err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	batch := &Batch{}
	for i := 0; i < pages; i++ {
		suffix := ""
		if pages > 1 {
			suffix = fmt.Sprintf("-p%d", i+1)
		}
		batch.Receipts = append(batch.Receipts, l.placeholder(f.Name, suffix))
	}
	return batch, nil
}

// plateAndDate splits a stem such as "SBA1234X_2024-05-01"
func plateAndDate(stem string) (string, civil.Date, bool) {
	i := strings.LastIndex(stem, "_")
	if i <= 0 {
		return "", civil.Date{}, false
	}
	date, err := civil.ParseDate(stem[i+1:])
	if err != nil {
		return "", civil.Date{}, false
	}
	return stem[:i], date, true
}

func missingFields(values fields, required []string) string {
	var missing []string
	for _, col := range required {
		if !values.has(col) {
			missing = append(missing, col)
		}
	}
	return strings.Join(missing, ",")
}

func precisionWarning(origin, source string, index int, from, to string) models.Diagnostic {
	return models.Diagnostic{
		Kind:    models.DiagnosticAmountPrecision,
		Origin:  origin,
		Source:  source,
		Index:   index,
		Field:   "amount",
		Message: fmt.Sprintf("%s rounded to %s", from, to),
	}
}

func joinNote(note, extra string) string {
	if note == "" {
		return extra
	}
	return note + "; " + extra
}
