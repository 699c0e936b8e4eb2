package claimform

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func itoa(i int) string { return strconv.Itoa(i) }

func renderRows(t *testing.T, n int) *Document {
	t.Helper()
	return renderTemplate(t, newTestTemplate(t), n)
}

func TestExcelWriter_Write(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	writer := NewExcelWriter("", logger)
	doc := renderRows(t, 23)

	var buf bytes.Buffer
	require.NoError(t, writer.Write(context.Background(), doc, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Page_1", "Page_2", "Page_3"}, f.GetSheetList())

	t.Run("structure copied to every page", func(t *testing.T) {
		for _, sheet := range f.GetSheetList() {
			title, err := f.GetCellValue(sheet, "B2")
			require.NoError(t, err)
			assert.Equal(t, "EXPENSE CLAIM FORM", title)

			formula, err := f.GetCellFormula(sheet, "G23")
			require.NoError(t, err)
			assert.Equal(t, "SUM(G13:G22)", formula)
		}
	})

	t.Run("values", func(t *testing.T) {
		v, _ := f.GetCellValue("Page_2", "B13")
		assert.Equal(t, "11", v)
		v, _ = f.GetCellValue("Page_3", "D15")
		assert.Equal(t, "SBA0023X", v)
		v, _ = f.GetCellValue("Page_3", "M3")
		assert.Equal(t, "Page 3 of 3", v)
		v, _ = f.GetCellValue("Page_1", "C30")
		assert.Equal(t, "Sales Engineer", v)
	})

	t.Run("amounts are numbers the form can total", func(t *testing.T) {
		v, err := f.GetCellValue("Page_1", "G13")
		require.NoError(t, err)
		assert.Equal(t, "10.000", v)
		v, err = f.GetCellValue("Page_3", "G15", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, "10.22", v)

		total, err := f.CalcCellValue("Page_1", "G23", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		sum, err := strconv.ParseFloat(total, 64)
		require.NoError(t, err)
		assert.InDelta(t, 100.45, sum, 1e-9)
	})

	t.Run("no sample data left behind", func(t *testing.T) {
		for row := 16; row <= 22; row++ {
			for _, col := range []string{"B", "C", "D", "E", "F", "G"} {
				v, err := f.GetCellValue("Page_3", col+itoa(row))
				require.NoError(t, err)
				assert.Empty(t, v, "Page_3!%s%d", col, row)
			}
		}
	})
}

func TestExcelWriter_WriteFile(t *testing.T) {
	writer := NewExcelWriter("Arial", nil)
	doc := renderRows(t, 4)
	path := filepath.Join(t.TempDir(), "claim.xlsx")

	require.NoError(t, writer.WriteFile(context.Background(), doc, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Page_1"}, f.GetSheetList())
	v, _ := f.GetCellValue("Page_1", "B16")
	assert.Equal(t, "4", v)
	v, _ = f.GetCellValue("Page_1", "B17")
	assert.Empty(t, v)
}

// templateWithSheets renames the prototype and adds extra sheets before parsing
func templateWithSheets(t *testing.T, proto string, extra ...string) *Template {
	t.Helper()
	layout := DefaultLayout()

	f, err := excelize.OpenReader(bytes.NewReader(newTemplateBytes(t, layout)))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.SetSheetName(testSheet, proto))
	for _, name := range extra {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	layout.SheetName = proto
	tmpl, err := ParseTemplate(bytes.NewReader(buf.Bytes()), "t.xlsx", layout)
	require.NoError(t, err)
	return tmpl
}

func renderTemplate(t *testing.T, tmpl *Template, n int) *Document {
	t.Helper()
	renderer, err := NewRenderer(tmpl, testHeader(), nil, WithClock(fixedClock))
	require.NoError(t, err)
	pages, err := Paginate(claimRows(n), DefaultPageSize)
	require.NoError(t, err)
	doc, err := renderer.Render(pages)
	require.NoError(t, err)
	return doc
}

func TestExcelWriter_PrototypeNamedLikePage(t *testing.T) {
	writer := NewExcelWriter("", nil)

	for _, proto := range []string{"Page_1", "Page_2"} {
		t.Run(proto, func(t *testing.T) {
			doc := renderTemplate(t, templateWithSheets(t, proto), 15)

			var buf bytes.Buffer
			require.NoError(t, writer.Write(context.Background(), doc, &buf))

			f, err := excelize.OpenReader(&buf)
			require.NoError(t, err)
			defer f.Close()

			assert.Equal(t, []string{"Page_1", "Page_2"}, f.GetSheetList())
			v, _ := f.GetCellValue("Page_2", "B13")
			assert.Equal(t, "11", v)
			v, _ = f.GetCellValue("Page_2", "B2")
			assert.Equal(t, "EXPENSE CLAIM FORM", v)
			v, _ = f.GetCellValue("Page_1", "B13")
			assert.Equal(t, "1", v)
		})
	}

	t.Run("other sheet holds a page name", func(t *testing.T) {
		doc := renderTemplate(t, templateWithSheets(t, testSheet, "Page_2"), 15)

		err := writer.Write(context.Background(), doc, &bytes.Buffer{})

		assert.ErrorIs(t, err, ErrTemplate)
		assert.Contains(t, err.Error(), "Page_2")
	})
}

func TestExcelWriter_Errors(t *testing.T) {
	writer := NewExcelWriter("", nil)

	t.Run("no template", func(t *testing.T) {
		err := writer.Write(context.Background(), &Document{}, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrTemplate)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := writer.Write(ctx, renderRows(t, 1), &bytes.Buffer{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
