package ingestion

import (
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/models"
)

// statementColumns lists the required statement columns; source must stay last,
// it is optional when the loader has a default source
var statementColumns = []string{"plate", "date", "amount", "source"}

func (l *Loader) externalsFromTable(t *table) *Batch {
	batch := &Batch{}
	required := l.externalColumns()
	for _, r := range t.rows {
		skip := func(field, msg string) {
			batch.Diagnostics = append(batch.Diagnostics, models.Diagnostic{
				Kind:    models.DiagnosticMalformedRecord,
				Origin:  models.OriginExternal,
				Source:  t.name,
				Index:   r.index,
				Field:   field,
				Message: msg,
			})
			l.logger.Warn("Skipping external row",
				zap.String("file", t.name),
				zap.Int("index", r.index),
				zap.String("field", field),
				zap.String("reason", msg))
		}

		if missing := missingFields(r.values, required); missing != "" {
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
			batch.Diagnostics = append(batch.Diagnostics, precisionWarning(models.OriginExternal, t.name, r.index, r.values["amount"], amount.String()))
		}

		source := models.ParseExternalSource(r.values["source"])
		if source == "" {
			source = l.defaultSource
		}

		batch.Externals = append(batch.Externals, models.ExternalRecord{
			Plate:       r.values["plate"],
			Date:        date,
			Amount:      amount,
			Source:      source,
			Note:        r.values["note"],
			SourceLabel: t.name,
		})
	}
	return batch
}
