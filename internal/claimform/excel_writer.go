package claimform

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// amountFormat shows amounts with DisplayPlaces decimals
var amountFormat = "0.000"

// ExcelWriter serializes a rendered Document into a workbook with one sheet per page
type ExcelWriter struct {
	fontName string
	logger   *zap.Logger
}

// NewExcelWriter creates a new ExcelWriter. fontName may be empty to keep the template's default font.
func NewExcelWriter(fontName string, logger *zap.Logger) *ExcelWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExcelWriter{fontName: fontName, logger: logger}
}

// Write copies the template's prototype sheet once per page, fills each copy
// from its Sheet and writes the workbook to out.
func (w *ExcelWriter) Write(ctx context.Context, doc *Document, out io.Writer) error {
	file, err := w.build(ctx, doc)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := file.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteFile writes the workbook to path
func (w *ExcelWriter) WriteFile(ctx context.Context, doc *Document, path string) error {
	file, err := w.build(ctx, doc)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}

	w.logger.Info("Claim form written",
		zap.String("output_path", path),
		zap.Int("page_count", doc.PageCount()))
	return nil
}

func (w *ExcelWriter) build(ctx context.Context, doc *Document) (*excelize.File, error) {
	if doc == nil || doc.Template == nil {
		return nil, templateError("", "document has no template", ErrTemplateNotFound)
	}
	if len(doc.Sheets) == 0 {
		return nil, configError("pages", "nothing to write")
	}

	file, err := doc.Template.Open()
	if err != nil {
		return nil, err
	}

	if err := w.layoutSheets(file, doc); err != nil {
		file.Close()
		return nil, err
	}

	if w.fontName != "" {
		if err := file.SetDefaultFont(w.fontName); err != nil {
			w.logger.Warn("Failed to set default font for claim form",
				zap.String("font", w.fontName),
				zap.Error(err))
		}
	}

	layout := doc.Template.Layout()
	owned := layout.ownedCells()
	styles := make(map[int]int)
	for _, sheet := range doc.Sheets {
		if err := ctx.Err(); err != nil {
			file.Close()
			return nil, err
		}
		if err := fillSheet(file, sheet, owned); err != nil {
			file.Close()
			return nil, err
		}
		if err := formatAmounts(file, sheet.Name, layout, styles); err != nil {
			file.Close()
			return nil, err
		}
	}
	return file, nil
}

// layoutSheets renames the untouched prototype to Page_1, then creates
// Page_2..Page_N as copies of it. Another sheet already holding a page name
// is a template error.
func (w *ExcelWriter) layoutSheets(file *excelize.File, doc *Document) error {
	tmpl := doc.Template
	proto := tmpl.SheetName()

	protoIdx, err := file.GetSheetIndex(proto)
	if err != nil || protoIdx < 0 {
		return templateError(tmpl.Name(), fmt.Sprintf("missing expected sheet %q", proto), ErrInvalidTemplate)
	}

	for _, sheet := range doc.Sheets {
		if sheet.Name == proto {
			continue
		}
		if idx, err := file.GetSheetIndex(sheet.Name); err == nil && idx >= 0 {
			return templateError(tmpl.Name(), fmt.Sprintf("sheet %q clashes with a page name", sheet.Name), ErrInvalidTemplate)
		}
	}

	first := doc.Sheets[0].Name
	if proto != first {
		if err := file.SetSheetName(proto, first); err != nil {
			return templateError(tmpl.Name(), "cannot rename prototype", err)
		}
	}

	for _, sheet := range doc.Sheets[1:] {
		idx, err := file.NewSheet(sheet.Name)
		if err != nil {
			return templateError(tmpl.Name(), "cannot add page "+sheet.Name, err)
		}
		if err := file.CopySheet(protoIdx, idx); err != nil {
			return templateError(tmpl.Name(), "cannot copy prototype to "+sheet.Name, err)
		}
	}

	file.SetActiveSheet(protoIdx)
	return nil
}

// fillSheet writes the renderer-owned cells of a sheet. Other prototype cells
// (labels, formulas, styles) are left exactly as copied. nil values clear a
// cell but keep its style. Amounts are written as numbers so the form's own
// formulas can total them.
func fillSheet(file *excelize.File, sheet *Sheet, owned []string) error {
	for _, ref := range owned {
		value := sheet.Cells[ref]
		if d, ok := value.(decimal.Decimal); ok {
			value = d.InexactFloat64()
		}
		if err := file.SetCellValue(sheet.Name, ref, value); err != nil {
			return fmt.Errorf("failed to set %s!%s: %w", sheet.Name, ref, err)
		}
	}
	return nil
}

// formatAmounts gives every amount cell of a page the fixed three-decimal
// number format on top of its template style. styles caches derived style
// IDs by template style ID.
func formatAmounts(file *excelize.File, sheet string, layout Layout, styles map[int]int) error {
	col := layout.Columns.Amount
	if col == "" {
		return nil
	}
	for slot := 0; slot < layout.Rows; slot++ {
		ref := layout.CellRef(col, slot)
		base, err := file.GetCellStyle(sheet, ref)
		if err != nil {
			return fmt.Errorf("failed to read style of %s!%s: %w", sheet, ref, err)
		}
		id, ok := styles[base]
		if !ok {
			style, err := file.GetStyle(base)
			if err != nil {
				return fmt.Errorf("failed to read style %d: %w", base, err)
			}
			style.NumFmt = 0
			style.CustomNumFmt = &amountFormat
			if id, err = file.NewStyle(style); err != nil {
				return fmt.Errorf("failed to create amount style: %w", err)
			}
			styles[base] = id
		}
		if err := file.SetCellStyle(sheet, ref, ref, id); err != nil {
			return fmt.Errorf("failed to format %s!%s: %w", sheet, ref, err)
		}
	}
	return nil
}
