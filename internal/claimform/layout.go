package claimform

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultPageSize is the number of data rows on one claim form page
const DefaultPageSize = 10

// Columns holds the column letters of the claim row fields on the form
type Columns struct {
	Serial string `mapstructure:"serial"`
	Date   string `mapstructure:"date"`
	Plate  string `mapstructure:"plate"`
	Status string `mapstructure:"status"`
	Note   string `mapstructure:"note"`
	Amount string `mapstructure:"amount"`
}

// letters returns the configured columns in display order, skipping unused ones
func (c Columns) letters() []string {
	var out []string
	for _, col := range []string{c.Serial, c.Date, c.Plate, c.Status, c.Note, c.Amount} {
		if col != "" {
			out = append(out, col)
		}
	}
	return out
}

// HeaderCells holds the cell references of the per-page header and footer fields.
// An empty reference means the field is not written.
type HeaderCells struct {
	Period        string `mapstructure:"period"`
	Employee      string `mapstructure:"employee"`
	Department    string `mapstructure:"department"`
	Approver      string `mapstructure:"approver"`
	SignatureDate string `mapstructure:"signature_date"`
	PageLabel     string `mapstructure:"page_label"`
}

type namedCell struct {
	field string
	ref   string
}

func (h HeaderCells) refs() []namedCell {
	return []namedCell{
		{"period", h.Period},
		{"employee", h.Employee},
		{"department", h.Department},
		{"approver", h.Approver},
		{"signature_date", h.SignatureDate},
		{"page_label", h.PageLabel},
	}
}

// Layout describes where claim data lives on the template sheet
type Layout struct {
	SheetName string      `mapstructure:"sheet_name"` // Prototype sheet; empty means the first sheet
	StartRow  int         `mapstructure:"start_row"`  // First data row (1-based)
	Rows      int         `mapstructure:"rows"`       // Data rows available on one page
	Columns   Columns     `mapstructure:"columns"`
	Header    HeaderCells `mapstructure:"header"`
}

// DefaultLayout returns the cell layout of the standard claim form:
// data rows 13-22, columns B-G, header/footer cells around them.
func DefaultLayout() Layout {
	return Layout{
		StartRow: 13,
		Rows:     DefaultPageSize,
		Columns: Columns{
			Serial: "B",
			Date:   "C",
			Plate:  "D",
			Status: "E",
			Note:   "F",
			Amount: "G",
		},
		Header: HeaderCells{
			Period:        "M2",
			PageLabel:     "M3",
			Employee:      "C29",
			Department:    "C30",
			Approver:      "I29",
			SignatureDate: "C32",
		},
	}
}

// EndRow returns the last data row
func (l Layout) EndRow() int {
	return l.StartRow + l.Rows - 1
}

// CellRef returns the cell reference of a column at the given slot (0-based)
func (l Layout) CellRef(column string, slot int) string {
	return fmt.Sprintf("%s%d", column, l.StartRow+slot)
}

// Validate checks that every configured row, column and cell reference is usable
func (l Layout) Validate() error {
	if l.StartRow < 1 {
		return configError("layout.start_row", "must be at least 1, got %d", l.StartRow)
	}
	if l.Rows < 1 {
		return configError("layout.rows", "must be at least 1, got %d", l.Rows)
	}

	letters := l.Columns.letters()
	if len(letters) == 0 {
		return configError("layout.columns", "no data columns configured")
	}
	seen := make(map[string]bool, len(letters))
	for _, col := range letters {
		if _, err := excelize.ColumnNameToNumber(col); err != nil {
			return configError("layout.columns", "invalid column %q: %v", col, err)
		}
		upper := strings.ToUpper(col)
		if seen[upper] {
			return configError("layout.columns", "column %q used twice", col)
		}
		seen[upper] = true
	}

	for _, c := range l.Header.refs() {
		if c.ref == "" {
			continue
		}
		col, row, err := excelize.CellNameToCoordinates(c.ref)
		if err != nil {
			return configError("layout.header."+c.field, "invalid cell %q: %v", c.ref, err)
		}
		if row >= l.StartRow && row <= l.EndRow() {
			name, _ := excelize.ColumnNumberToName(col)
			if seen[name] {
				return configError("layout.header."+c.field, "cell %q overlaps the data area", c.ref)
			}
		}
	}
	return nil
}

// normalized returns the layout with upper-case column letters and cell references
func (l Layout) normalized() Layout {
	up := strings.ToUpper
	l.Columns = Columns{
		Serial: up(l.Columns.Serial),
		Date:   up(l.Columns.Date),
		Plate:  up(l.Columns.Plate),
		Status: up(l.Columns.Status),
		Note:   up(l.Columns.Note),
		Amount: up(l.Columns.Amount),
	}
	l.Header = HeaderCells{
		Period:        up(l.Header.Period),
		Employee:      up(l.Header.Employee),
		Department:    up(l.Header.Department),
		Approver:      up(l.Header.Approver),
		SignatureDate: up(l.Header.SignatureDate),
		PageLabel:     up(l.Header.PageLabel),
	}
	return l
}

// ownedCells returns every cell the renderer writes: the data area and the header cells
func (l Layout) ownedCells() []string {
	var refs []string
	for slot := 0; slot < l.Rows; slot++ {
		for _, col := range l.Columns.letters() {
			refs = append(refs, l.CellRef(col, slot))
		}
	}
	for _, c := range l.Header.refs() {
		if c.ref != "" {
			refs = append(refs, c.ref)
		}
	}
	return refs
}
