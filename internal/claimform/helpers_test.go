package claimform

import (
	"bytes"
	"fmt"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/claim-reconciler/internal/models"
)

const testSheet = "Claim Form"

// newTemplateBytes builds a claim form workbook whose data rows are full of
// sample values, as real templates often are.
func newTemplateBytes(t *testing.T, layout Layout) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", testSheet))
	require.NoError(t, f.SetCellValue(testSheet, "B2", "EXPENSE CLAIM FORM"))
	require.NoError(t, f.SetCellValue(testSheet, "B12", "S/N"))
	require.NoError(t, f.SetCellValue(testSheet, "G12", "Amount"))
	require.NoError(t, f.SetCellFormula(testSheet, "G23", fmt.Sprintf("SUM(G%d:G%d)", layout.StartRow, layout.EndRow())))

	for slot := 0; slot < layout.Rows; slot++ {
		for _, col := range layout.Columns.letters() {
			require.NoError(t, f.SetCellValue(testSheet, layout.CellRef(col, slot), "SAMPLE"))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newTestTemplate(t *testing.T) *Template {
	t.Helper()
	layout := DefaultLayout()
	layout.SheetName = testSheet
	tmpl, err := ParseTemplate(bytes.NewReader(newTemplateBytes(t, layout)), "test.xlsx", layout)
	require.NoError(t, err)
	return tmpl
}

func testHeader() HeaderFields {
	return HeaderFields{
		Employee:      "WANG TING I",
		Department:    "Sales Engineer",
		Approver:      "Vicky Wang",
		PeriodStart:   civil.Date{Year: 2024, Month: 5, Day: 1},
		PeriodEnd:     civil.Date{Year: 2024, Month: 5, Day: 31},
		SignatureDate: civil.Date{Year: 2024, Month: 6, Day: 3},
	}
}

func claimRows(n int) []models.ClaimRow {
	rows := make([]models.ClaimRow, n)
	for i := range rows {
		rows[i] = models.ClaimRow{
			Plate:              fmt.Sprintf("SBA%04dX", i+1),
			Date:               civil.Date{Year: 2024, Month: 5, Day: i%28 + 1},
			ReimbursableAmount: decimal.New(int64(1000+i), -2),
			MatchStatus:        models.MatchStatusReceiptOnly,
			SourceNote:         fmt.Sprintf("row %d", i+1),
		}
	}
	return rows
}
