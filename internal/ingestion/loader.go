package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/currency"
	"github.com/garyjia/claim-reconciler/internal/models"
)

// File is one uploaded or on-disk input. Name selects the adapter by extension.
type File struct {
	Name string
	Data []byte
}

// ReadFile loads a file from disk
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// Batch is the parsed content of one or more files. Diagnostics hold the rows
// that were skipped or adjusted on the way in.
type Batch struct {
	Receipts    []models.ReceiptRecord
	Externals   []models.ExternalRecord
	Diagnostics []models.Diagnostic
}

func (b *Batch) merge(other *Batch) {
	b.Receipts = append(b.Receipts, other.Receipts...)
	b.Externals = append(b.Externals, other.Externals...)
	b.Diagnostics = append(b.Diagnostics, other.Diagnostics...)
}

// Loader turns input files into receipt and external records
type Loader struct {
	converter     *currency.Converter
	aliases       map[string]string
	defaultSource models.ExternalSource
	now           func() time.Time
	logger        *zap.Logger
}

// Option customizes a Loader
type Option func(*Loader)

// WithClock sets the clock that dates placeholders without a dated file name
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithColumnAliases maps extra source headers onto canonical columns,
// e.g. {"gantry location": "note"}
func WithColumnAliases(aliases map[string]string) Option {
	return func(l *Loader) {
		for header, column := range aliases {
			l.aliases[canonical(header, nil)] = canonical(column, nil)
		}
	}
}

// WithDefaultSource sets the source of external rows whose file has no source column
func WithDefaultSource(source string) Option {
	return func(l *Loader) { l.defaultSource = models.ParseExternalSource(source) }
}

// NewLoader creates a Loader. converter may be nil when every receipt is in the base currency.
func NewLoader(converter *currency.Converter, logger *zap.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		converter: converter,
		aliases:   defaultAliases(),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// defaultAliases covers the column names used by the toll and charging statements
func defaultAliases() map[string]string {
	return map[string]string{
		"transaction_date": "date",
		"cost":             "amount",
		"gantry_location":  "note",
		"station":          "note",
		"description":      "note",
		"vehicle":          "plate",
		"vehicle_no":       "plate",
		"car_plate":        "plate",
		"invoice_no":       "receipt_id",
		"supplier_name":    "merchant",
		"expense_type":     "category",
	}
}

// LoadReceipts parses every receipt file in order. Row-level problems, missing
// columns included, become diagnostics; an unsupported or unreadable file fails the call.
func (l *Loader) LoadReceipts(ctx context.Context, files []File) (*Batch, error) {
	batch := &Batch{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := l.loadReceiptFile(f)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Receipt file loaded",
			zap.String("file", f.Name),
			zap.Int("receipts", len(part.Receipts)),
			zap.Int("diagnostics", len(part.Diagnostics)))
		batch.merge(part)
	}
	return batch, nil
}

// LoadExternals parses every external statement in order
func (l *Loader) LoadExternals(ctx context.Context, files []File) (*Batch, error) {
	batch := &Batch{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := l.loadExternalFile(f)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("External file loaded",
			zap.String("file", f.Name),
			zap.Int("externals", len(part.Externals)),
			zap.Int("diagnostics", len(part.Diagnostics)))
		batch.merge(part)
	}
	return batch, nil
}

func (l *Loader) loadReceiptFile(f File) (*Batch, error) {
	var (
		t   *table
		err error
	)
	switch ext := extension(f.Name); {
	case ext == ".json":
		t, err = readJSON(f.Name, f.Data, l.aliases)
	case ext == ".csv":
		t, err = readCSV(f.Name, f.Data, l.aliases)
	case isWorkbook(ext):
		t, err = readWorkbook(f.Name, f.Data, l.aliases)
	case isImage(ext):
		return &Batch{Receipts: []models.ReceiptRecord{l.placeholder(f.Name, "")}}, nil
	case ext == ".pdf":
		return l.pdfPlaceholders(f)
	default:
		return nil, fmt.Errorf("%s: %w: receipts must be JSON, CSV, XLSX, PDF or images", f.Name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	l.warnMissingColumns(t, receiptColumns)
	return l.receiptsFromTable(t), nil
}

func (l *Loader) loadExternalFile(f File) (*Batch, error) {
	var (
		t   *table
		err error
	)
	switch ext := extension(f.Name); {
	case ext == ".json":
		t, err = readJSON(f.Name, f.Data, l.aliases)
	case ext == ".csv":
		t, err = readCSV(f.Name, f.Data, l.aliases)
	case isWorkbook(ext):
		t, err = readWorkbook(f.Name, f.Data, l.aliases)
	default:
		return nil, fmt.Errorf("%s: %w: external statements must be JSON, CSV or XLSX", f.Name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	l.warnMissingColumns(t, l.externalColumns())
	return l.externalsFromTable(t), nil
}

// externalColumns drops source when the loader has a default for it
func (l *Loader) externalColumns() []string {
	if l.defaultSource != "" {
		return statementColumns[:len(statementColumns)-1]
	}
	return statementColumns
}

// warnMissingColumns logs a header that lacks required columns. Every row of
// such a file is then reported as malformed.
func (l *Loader) warnMissingColumns(t *table, required []string) {
	if t.json {
		return
	}
	if missing := t.missingColumns(required); len(missing) > 0 {
		l.logger.Warn("Table is missing required columns",
			zap.String("file", t.name),
			zap.Strings("columns", missing),
			zap.Int("rows", len(t.rows)))
	}
}

func extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

func isWorkbook(ext string) bool {
	return ext == ".xlsx" || ext == ".xlsm"
}

func isImage(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

// IsReceiptFile reports whether name has an extension LoadReceipts reads
func IsReceiptFile(name string) bool {
	ext := extension(name)
	return ext == ".json" || ext == ".csv" || ext == ".pdf" || isWorkbook(ext) || isImage(ext)
}

// IsExternalFile reports whether name has an extension LoadExternals reads
func IsExternalFile(name string) bool {
	ext := extension(name)
	return ext == ".json" || ext == ".csv" || isWorkbook(ext)
}
