package claimform

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/claim-reconciler/internal/models"
)

// FlatColumns are the column names of the flat (non-paginated) export
var FlatColumns = []string{"plate", "date", "match_status", "source_note", "reimbursable_amount"}

func flatRecord(row models.ClaimRow) []string {
	return []string{
		row.Plate,
		row.Date.String(),
		string(row.MatchStatus),
		row.SourceNote,
		FormatAmount(row.ReimbursableAmount),
	}
}

// ExportCSV writes the claim rows as one un-paginated CSV table
func ExportCSV(out io.Writer, rows []models.ClaimRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(FlatColumns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, row := range rows {
		if err := w.Write(flatRecord(row)); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}
	w.Flush()
	return w.Error()
}

// ExportWorkbook writes the claim rows as one un-paginated worksheet
func ExportWorkbook(out io.Writer, rows []models.ClaimRow) error {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Claim"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(FlatColumns))
	for i, c := range FlatColumns {
		header[i] = c
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		record := flatRecord(row)
		values := make([]interface{}, len(record))
		for j, v := range record {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := file.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
