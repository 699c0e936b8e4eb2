package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/currency"
	"github.com/garyjia/claim-reconciler/internal/models"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
}

func newTestLoader(t *testing.T, opts ...Option) *Loader {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	rates := currency.StaticRates{
		"JPY": decimal.RequireFromString("0.0087"),
		"USD": decimal.RequireFromString("1.34567"),
	}
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewLoader(currency.NewConverter("SGD", rates), logger, opts...)
}

func workbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestLoadReceipts_JSON(t *testing.T) {
	loader := newTestLoader(t)
	data := []byte(`[
		{"receipt_id": "R1", "date": "2024-05-01", "plate": "SBA 1234x", "merchant": "Shell", "amount": 45.5, "category": "fuel"},
		{"receipt_id": "R2", "date": "2024-05-02", "plate": "SBA1234X", "merchant": "Shell", "amount": "1,200.00", "category": "fuel", "note": "team trip"},
		{"receipt_id": "R3", "date": "01-05-2024", "plate": "SBA1234X", "merchant": "Shell", "amount": 1, "category": "fuel"},
		{"receipt_id": "R4", "date": "2024-05-04", "plate": "SBA1234X", "merchant": "Shell", "amount": "abc", "category": "fuel"},
		{"receipt_id": "R5", "date": "2024-05-05", "plate": "SBA1234X", "amount": 3}
	]`)

	batch, err := loader.LoadReceipts(context.Background(), []File{{Name: "ocr.json", Data: data}})
	require.NoError(t, err)

	require.Len(t, batch.Receipts, 2)
	first := batch.Receipts[0]
	assert.Equal(t, "R1", first.ReceiptID)
	assert.Equal(t, "SBA 1234x", first.Plate)
	assert.Equal(t, civil.Date{Year: 2024, Month: 5, Day: 1}, first.Date)
	assertAmount(t, "45.5", first.Amount)
	assert.Equal(t, "ocr.json", first.SourceLabel)
	assertAmount(t, "1200", batch.Receipts[1].Amount)
	assert.Equal(t, "team trip", batch.Receipts[1].Note)

	require.Len(t, batch.Diagnostics, 3)
	assert.Equal(t, 3, batch.Diagnostics[0].Index)
	assert.Equal(t, "date", batch.Diagnostics[0].Field)
	assert.Equal(t, "amount", batch.Diagnostics[1].Field)
	assert.Equal(t, 5, batch.Diagnostics[2].Index)
	assert.Equal(t, "merchant,category", batch.Diagnostics[2].Field)
	for _, d := range batch.Diagnostics {
		assert.Equal(t, models.DiagnosticMalformedRecord, d.Kind)
		assert.Equal(t, models.OriginReceipt, d.Origin)
		assert.Equal(t, "ocr.json", d.Source)
	}
}

func TestLoadReceipts_JSONNotAnArray(t *testing.T) {
	loader := newTestLoader(t)

	_, err := loader.LoadReceipts(context.Background(), []File{{Name: "ocr.json", Data: []byte(`{"receipt_id": "R1"}`)}})

	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestLoadReceipts_CSV(t *testing.T) {
	loader := newTestLoader(t)

	t.Run("rows", func(t *testing.T) {
		data := "\xef\xbb\xbfReceipt_ID,Date,Plate,Merchant,Amount,Category\n" +
			"R1,2024-05-01,SBA1234X,Caltex,12.3400000000001,fuel\n" +
			",,,,,\n" +
			"R3,2024/05/03,SBA1234X,Caltex,7,parking\n"

		batch, err := loader.LoadReceipts(context.Background(), []File{{Name: "receipts.csv", Data: []byte(data)}})
		require.NoError(t, err)

		require.Len(t, batch.Receipts, 2)
		assertAmount(t, "12.34", batch.Receipts[0].Amount)
		assert.Equal(t, civil.Date{Year: 2024, Month: 5, Day: 3}, batch.Receipts[1].Date)

		require.Len(t, batch.Diagnostics, 1)
		d := batch.Diagnostics[0]
		assert.Equal(t, models.DiagnosticAmountPrecision, d.Kind)
		assert.False(t, d.IsSkip())
		assert.Equal(t, 1, d.Index)
	})

	t.Run("missing columns", func(t *testing.T) {
		data := "receipt_id,date,plate,amount\nR1,2024-05-01,SBA1234X,1\nR2,2024-05-02,SBA1234X,2\n"
		other := "receipt_id,date,plate,merchant,amount,category\nR3,2024-05-03,SBA1234X,Caltex,3,fuel\n"

		batch, err := loader.LoadReceipts(context.Background(), []File{
			{Name: "receipts.csv", Data: []byte(data)},
			{Name: "more.csv", Data: []byte(other)},
		})
		require.NoError(t, err)

		require.Len(t, batch.Receipts, 1)
		assert.Equal(t, "R3", batch.Receipts[0].ReceiptID)
		require.Len(t, batch.Diagnostics, 2)
		for i, d := range batch.Diagnostics {
			assert.Equal(t, models.DiagnosticMalformedRecord, d.Kind)
			assert.Equal(t, "receipts.csv", d.Source)
			assert.Equal(t, i+1, d.Index)
			assert.Equal(t, "merchant,category", d.Field)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		batch, err := loader.LoadReceipts(context.Background(), []File{{Name: "receipts.csv"}})

		require.NoError(t, err)
		assert.Empty(t, batch.Receipts)
	})
}

func TestLoadReceipts_Workbook(t *testing.T) {
	loader := newTestLoader(t)
	data := workbook(t, [][]interface{}{
		{"receipt_id", "date", "plate", "merchant", "amount", "category"},
		{"R1", "2024-05-01", "SBA1234X", "Shell", 45.5, "fuel"},
		{"R2", 45414, "SBA1234X", "Shell", 3, "fuel"},
	})

	batch, err := loader.LoadReceipts(context.Background(), []File{{Name: "receipts.xlsx", Data: data}})
	require.NoError(t, err)

	require.Len(t, batch.Receipts, 2)
	assertAmount(t, "45.5", batch.Receipts[0].Amount)
	assert.Equal(t, civil.Date{Year: 2024, Month: 5, Day: 2}, batch.Receipts[1].Date)
	assert.Empty(t, batch.Diagnostics)
}

func TestLoadReceipts_ForeignCurrency(t *testing.T) {
	loader := newTestLoader(t)
	data := "receipt_id,date,plate,merchant,amount,category,currency\n" +
		"R1,2025-09-01,SBA1234X,Zaoh Japan,18920,hotel,JPY\n" +
		"R2,2025-09-02,SBA1234X,Hertz,10.05,rental,usd\n" +
		"R3,2025-09-03,SBA1234X,Hertz,10,rental,EUR\n" +
		"R4,2025-09-04,SBA1234X,Shell,10,fuel,SGD\n"

	batch, err := loader.LoadReceipts(context.Background(), []File{{Name: "trip.csv", Data: []byte(data)}})
	require.NoError(t, err)

	require.Len(t, batch.Receipts, 3)
	assertAmount(t, "164.604", batch.Receipts[0].Amount)
	assert.Equal(t, "SGD", batch.Receipts[0].Currency)
	assert.Equal(t, "18920 JPY at 0.0087", batch.Receipts[0].Note)
	assertAmount(t, "13.524", batch.Receipts[1].Amount)
	assertAmount(t, "10", batch.Receipts[2].Amount)

	require.Len(t, batch.Diagnostics, 2)
	assert.Equal(t, models.DiagnosticAmountPrecision, batch.Diagnostics[0].Kind)
	assert.Equal(t, 2, batch.Diagnostics[0].Index)
	assert.Equal(t, models.DiagnosticMalformedRecord, batch.Diagnostics[1].Kind)
	assert.Equal(t, "currency", batch.Diagnostics[1].Field)
	assert.Equal(t, 3, batch.Diagnostics[1].Index)
}

func TestLoadReceipts_Placeholders(t *testing.T) {
	loader := newTestLoader(t)

	batch, err := loader.LoadReceipts(context.Background(), []File{
		{Name: "SBA1234X_2024-05-01.jpg", Data: []byte{0xff, 0xd8}},
		{Name: "scan.PNG", Data: []byte{0x89}},
	})
	require.NoError(t, err)
	require.Len(t, batch.Receipts, 2)

	named := batch.Receipts[0]
	assert.True(t, named.IsPlaceholder)
	assert.Equal(t, "SBA1234X", named.Plate)
	assert.Equal(t, civil.Date{Year: 2024, Month: 5, Day: 1}, named.Date)
	assert.Equal(t, "SBA1234X_2024-05-01", named.ReceiptID)

	unnamed := batch.Receipts[1]
	assert.Equal(t, models.PlaceholderPlate, unnamed.Plate)
	assert.Equal(t, civil.Date{Year: 2024, Month: 6, Day: 10}, unnamed.Date)
	assert.Equal(t, "image_placeholder", unnamed.Category)
}

// minimalPDF builds a valid PDF with the given number of empty pages
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestLoadReceipts_PDF(t *testing.T) {
	loader := newTestLoader(t)

	t.Run("one placeholder per page", func(t *testing.T) {
		batch, err := loader.LoadReceipts(context.Background(), []File{{Name: "SBA1234X_2024-05-01.pdf", Data: minimalPDF(2)}})
		require.NoError(t, err)

		require.Len(t, batch.Receipts, 2)
		assert.Equal(t, "SBA1234X_2024-05-01-p1", batch.Receipts[0].ReceiptID)
		assert.Equal(t, "SBA1234X_2024-05-01-p2", batch.Receipts[1].ReceiptID)
		for _, r := range batch.Receipts {
			assert.True(t, r.IsPlaceholder)
			assert.Equal(t, "SBA1234X", r.Plate)
		}
	})

	t.Run("empty upload", func(t *testing.T) {
		_, err := loader.LoadReceipts(context.Background(), []File{{Name: "broken.pdf"}})
		assert.ErrorIs(t, err, ErrUnreadable)
	})
}

func TestLoadReceipts_Unsupported(t *testing.T) {
	loader := newTestLoader(t)

	_, err := loader.LoadReceipts(context.Background(), []File{{Name: "receipts.xls", Data: []byte("x")}})

	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, IsReceiptFile("receipts.xls"))
	assert.True(t, IsReceiptFile("Receipts.XLSX"))
	assert.True(t, IsReceiptFile("photo.webp"))
	assert.True(t, IsExternalFile("etc.json"))
	assert.False(t, IsExternalFile("etc.txt"))
}

func TestLoadReceipts_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestLoader(t).LoadReceipts(ctx, []File{{Name: "a.json", Data: []byte("[]")}})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadExternals(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		data := "plate,date,source,amount,note\n" +
			"SBA1234X,2024-05-01,ETC,50.000,CTE gantry\n" +
			",2024-05-02,etc,1,\n" +
			"SBA1234X,2024-05-03,EV Charging,1.2085,\n" +
			"SBA1234X,bad,etc,1,\n"

		batch, err := newTestLoader(t).LoadExternals(context.Background(), []File{{Name: "etc.csv", Data: []byte(data)}})
		require.NoError(t, err)

		require.Len(t, batch.Externals, 3)
		assert.Equal(t, models.SourceETC, batch.Externals[0].Source)
		assert.Equal(t, "CTE gantry", batch.Externals[0].Note)
		assert.Equal(t, "etc.csv", batch.Externals[0].SourceLabel)
		assert.Equal(t, "", batch.Externals[1].Plate)
		assert.Equal(t, models.SourceCharging, batch.Externals[2].Source)
		assertAmount(t, "1.2085", batch.Externals[2].Amount)

		require.Len(t, batch.Diagnostics, 1)
		assert.Equal(t, models.OriginExternal, batch.Diagnostics[0].Origin)
		assert.Equal(t, 4, batch.Diagnostics[0].Index)
	})

	t.Run("statement columns with default source", func(t *testing.T) {
		data := workbook(t, [][]interface{}{
			{"Transaction Date", "Vehicle", "Gantry Location", "Amount"},
			{"2024-05-01", "SBA1234X", "AYE", 1.1},
		})
		loader := newTestLoader(t, WithDefaultSource("toll"))

		batch, err := loader.LoadExternals(context.Background(), []File{{Name: "source_etc.xlsx", Data: data}})
		require.NoError(t, err)

		require.Len(t, batch.Externals, 1)
		ext := batch.Externals[0]
		assert.Equal(t, models.SourceETC, ext.Source)
		assert.Equal(t, "AYE", ext.Note)
		assert.Equal(t, "SBA1234X", ext.Plate)
		assertAmount(t, "1.1", ext.Amount)
	})

	t.Run("custom aliases", func(t *testing.T) {
		data := "Date,Car,Station,Cost,Source\n2024-05-01,SBA1234X,Jurong,4.2,charging\n"
		loader := newTestLoader(t, WithColumnAliases(map[string]string{"Car": "plate"}))

		batch, err := loader.LoadExternals(context.Background(), []File{{Name: "charging.csv", Data: []byte(data)}})
		require.NoError(t, err)

		require.Len(t, batch.Externals, 1)
		assert.Equal(t, "SBA1234X", batch.Externals[0].Plate)
		assert.Equal(t, "Jurong", batch.Externals[0].Note)
	})

	t.Run("missing source column", func(t *testing.T) {
		data := "plate,date,amount,note\nSBA1X,2024-05-01,12.5,gantry\n"
		charging := "plate,date,amount,source\nSBA1X,2024-05-02,3,charging\n"

		batch, err := newTestLoader(t).LoadExternals(context.Background(), []File{
			{Name: "etc.csv", Data: []byte(data)},
			{Name: "charging.csv", Data: []byte(charging)},
		})
		require.NoError(t, err)

		require.Len(t, batch.Externals, 1)
		assert.Equal(t, models.SourceCharging, batch.Externals[0].Source)
		require.Len(t, batch.Diagnostics, 1)
		d := batch.Diagnostics[0]
		assert.Equal(t, models.DiagnosticMalformedRecord, d.Kind)
		assert.Equal(t, models.OriginExternal, d.Origin)
		assert.Equal(t, "etc.csv", d.Source)
		assert.Equal(t, 1, d.Index)
		assert.Equal(t, "source", d.Field)
	})

	t.Run("json statement", func(t *testing.T) {
		data := `[
			{"plate": "SBA1234X", "date": "2024-05-01", "amount": 1.25, "source": "etc", "note": "AYE"},
			{"plate": "SBA1234X", "date": "2024-05-02", "amount": 2}
		]`

		batch, err := newTestLoader(t).LoadExternals(context.Background(), []File{{Name: "etc.json", Data: []byte(data)}})
		require.NoError(t, err)

		require.Len(t, batch.Externals, 1)
		assert.Equal(t, models.SourceETC, batch.Externals[0].Source)
		assertAmount(t, "1.25", batch.Externals[0].Amount)
		require.Len(t, batch.Diagnostics, 1)
		assert.Equal(t, 2, batch.Diagnostics[0].Index)
		assert.Equal(t, "source", batch.Diagnostics[0].Field)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := newTestLoader(t).LoadExternals(context.Background(), []File{{Name: "etc.txt", Data: []byte("x")}})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}
