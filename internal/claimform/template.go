package claimform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Template is the immutable structural prototype of one claim form page.
// It keeps the workbook bytes and a snapshot of the prototype sheet; every
// render opens its own copy, so pages never share cells with each other or
// with the prototype.
type Template struct {
	name   string
	layout Layout
	sheet  string
	raw    []byte
	cells  map[string]string
}

// LoadTemplate reads a claim form template from disk
func LoadTemplate(path string, layout Layout) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, templateError(path, "not found", ErrTemplateNotFound)
		}
		return nil, templateError(path, "unreadable", err)
	}
	return parseTemplate(path, raw, layout)
}

// ParseTemplate reads a claim form template from r. name is used in errors only.
func ParseTemplate(r io.Reader, name string, layout Layout) (*Template, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, templateError(name, "unreadable", err)
	}
	return parseTemplate(name, raw, layout)
}

func parseTemplate(name string, raw []byte, layout Layout) (*Template, error) {
	layout = layout.normalized()
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, templateError(name, "empty file", ErrInvalidTemplate)
	}

	file, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, templateError(name, "cannot open workbook", errors.Join(ErrInvalidTemplate, err))
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, templateError(name, "workbook has no sheets", ErrInvalidTemplate)
	}

	sheet := layout.SheetName
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, err := file.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, templateError(name, fmt.Sprintf("missing expected sheet %q", sheet), ErrInvalidTemplate)
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, templateError(name, "cannot read prototype sheet", errors.Join(ErrInvalidTemplate, err))
	}

	cells := make(map[string]string)
	for r, row := range rows {
		for c, value := range row {
			if value == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, templateError(name, "cannot address prototype cell", err)
			}
			cells[ref] = value
		}
	}

	layout.SheetName = sheet
	return &Template{
		name:   name,
		layout: layout,
		sheet:  sheet,
		raw:    raw,
		cells:  cells,
	}, nil
}

// Name returns the file name the template was loaded from
func (t *Template) Name() string { return t.name }

// Layout returns the resolved layout; SheetName is always set
func (t *Template) Layout() Layout { return t.layout }

// SheetName returns the prototype sheet name
func (t *Template) SheetName() string { return t.sheet }

// Cell returns the prototype's value at ref
func (t *Template) Cell(ref string) string { return t.cells[ref] }

// Open returns a fresh, independently mutable workbook copy of the template
func (t *Template) Open() (*excelize.File, error) {
	file, err := excelize.OpenReader(bytes.NewReader(t.raw))
	if err != nil {
		return nil, templateError(t.name, "cannot copy workbook", err)
	}
	return file, nil
}

// Sheet is one rendered page: the prototype's cells plus the page's values.
// Cells maps a cell reference to its value; a nil value is an explicitly
// cleared cell. Amounts are decimals already quantized for display.
type Sheet struct {
	Name  string
	Page  Page
	Cells map[string]interface{}
}

// Value returns the value at ref and whether the sheet defines it
func (s *Sheet) Value(ref string) (interface{}, bool) {
	v, ok := s.Cells[ref]
	return v, ok
}

// Text returns the value at ref as display text; cleared and missing cells are ""
func (s *Sheet) Text(ref string) string {
	v, ok := s.Cells[ref]
	if !ok || v == nil {
		return ""
	}
	if d, ok := v.(decimal.Decimal); ok {
		return d.StringFixed(DisplayPlaces)
	}
	return fmt.Sprint(v)
}

// BlankPage builds an unpopulated page from the prototype. Every data cell
// of the layout is present and cleared, whatever sample content the template
// carries there; all other prototype cells are copied by value.
func BlankPage(t *Template) *Sheet {
	cells := make(map[string]interface{}, len(t.cells)+t.layout.Rows*len(t.layout.Columns.letters()))
	for ref, v := range t.cells {
		cells[ref] = v
	}
	for slot := 0; slot < t.layout.Rows; slot++ {
		for _, col := range t.layout.Columns.letters() {
			cells[t.layout.CellRef(col, slot)] = nil
		}
	}
	return &Sheet{Cells: cells}
}
