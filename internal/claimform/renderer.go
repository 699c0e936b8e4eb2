package claimform

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/models"
)

// Document is the in-memory rendered claim form, ready for a writer
type Document struct {
	Template *Template
	Header   HeaderFields
	Sheets   []*Sheet
}

// PageCount returns the number of rendered pages
func (d *Document) PageCount() int {
	return len(d.Sheets)
}

// Renderer turns pages into sheets built from one shared template prototype
type Renderer struct {
	template *Template
	header   HeaderFields
	now      func() time.Time
	logger   *zap.Logger
}

// RendererOption customizes a Renderer
type RendererOption func(*Renderer)

// WithClock sets the clock used for the default signature date
func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) { r.now = now }
}

// NewRenderer creates a Renderer. A missing template is a TemplateError and
// an invalid header a ConfigurationError.
func NewRenderer(tmpl *Template, header HeaderFields, logger *zap.Logger, opts ...RendererOption) (*Renderer, error) {
	if tmpl == nil {
		return nil, templateError("", "no template prototype", ErrTemplateNotFound)
	}
	if err := header.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Renderer{
		template: tmpl,
		header:   header,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render builds one sheet per page. Each sheet starts from a fresh blank
// copy of the prototype, gets the run's header fields and its own slots, so
// rendering one page can never alter another.
func (r *Renderer) Render(pages []Page) (*Document, error) {
	layout := r.template.Layout()
	if len(pages) == 0 {
		return nil, configError("pages", "nothing to render")
	}

	header := r.header
	if header.SignatureDate.IsZero() {
		header.SignatureDate = civil.DateOf(r.now())
	}

	doc := &Document{
		Template: r.template,
		Header:   header,
		Sheets:   make([]*Sheet, 0, len(pages)),
	}
	for i, page := range pages {
		if len(page.Slots) > layout.Rows {
			return nil, configError("page_size", "page %d has %d rows but the template holds %d", page.Index, len(page.Slots), layout.Rows)
		}

		sheet := BlankPage(r.template)
		sheet.Name = fmt.Sprintf("Page_%d", i+1)
		page.Header = header
		sheet.Page = page

		r.writeHeader(sheet, header, i+1, len(pages))
		for slot, s := range page.Slots {
			if s.Cleared() {
				continue
			}
			r.writeRow(sheet, slot, s)
		}
		doc.Sheets = append(doc.Sheets, sheet)
	}

	r.logger.Debug("Claim form rendered",
		zap.String("template", r.template.Name()),
		zap.Int("page_count", len(doc.Sheets)))

	return doc, nil
}

func (r *Renderer) writeHeader(sheet *Sheet, header HeaderFields, index, total int) {
	cells := r.template.Layout().Header
	set := func(ref string, value interface{}) {
		if ref != "" {
			sheet.Cells[ref] = value
		}
	}

	set(cells.Period, header.PeriodLabel())
	set(cells.Employee, header.Employee)
	set(cells.Department, header.Department)
	set(cells.Approver, header.Approver)
	set(cells.SignatureDate, header.SignatureDate.String())
	set(cells.PageLabel, fmt.Sprintf("Page %d of %d", index, total))
}

func (r *Renderer) writeRow(sheet *Sheet, slot int, s Slot) {
	layout := r.template.Layout()
	cols := layout.Columns
	row := s.Row

	set := func(col string, value interface{}) {
		if col != "" {
			sheet.Cells[layout.CellRef(col, slot)] = value
		}
	}

	set(cols.Serial, s.Serial)
	set(cols.Date, row.Date.String())
	set(cols.Plate, row.Plate)
	set(cols.Status, string(row.MatchStatus))
	set(cols.Note, row.SourceNote)
	set(cols.Amount, QuantizeAmount(row.ReimbursableAmount))
}

// Rows returns every claim row of the document in page order
func (d *Document) Rows() []models.ClaimRow {
	var rows []models.ClaimRow
	for _, s := range d.Sheets {
		rows = append(rows, s.Page.Rows()...)
	}
	return rows
}
