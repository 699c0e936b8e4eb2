package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/claimform"
	"github.com/garyjia/claim-reconciler/internal/ingestion"
	"github.com/garyjia/claim-reconciler/internal/models"
	"github.com/garyjia/claim-reconciler/internal/reconcile"
	"github.com/garyjia/claim-reconciler/internal/storage"
)

var (
	// ErrRunNotFound is returned for unknown run IDs
	ErrRunNotFound = errors.New("claim run not found")
	// ErrInvalidFormat is returned for an unknown output format
	ErrInvalidFormat = errors.New("invalid output format")
)

// RunRepository persists claim run history
type RunRepository interface {
	Create(ctx context.Context, run *models.ClaimRun) error
	GetByID(ctx context.Context, id string) (*models.ClaimRun, error)
	List(ctx context.Context, limit, offset int) ([]*models.ClaimRun, error)
}

// Config holds the generation settings of a ClaimService
type Config struct {
	TemplatePath  string
	Layout        claimform.Layout
	PageSize      int
	DefaultFormat string
	Header        claimform.HeaderFields
}

// GenerateRequest is one claim generation: the input files and output choices
type GenerateRequest struct {
	Receipts  []ingestion.File
	Externals []ingestion.File
	Format    string                  // empty means the configured default
	Header    *claimform.HeaderFields // nil means the configured header
}

// GenerateResult is everything a caller learns from one generation
type GenerateResult struct {
	Run      *models.ClaimRun
	Rows     []models.ClaimRow
	FileName string
}

// ClaimService runs the claim pipeline: ingest, reconcile, paginate, render, store
type ClaimService struct {
	cfg        Config
	loader     *ingestion.Loader
	reconciler *reconcile.Reconciler
	writer     *claimform.ExcelWriter
	files      storage.FileStorage
	folders    *storage.FolderManager
	repo       RunRepository
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
}

// Option customizes a ClaimService
type Option func(*ClaimService)

// WithClock sets the clock used for run timestamps and default signature dates
func WithClock(now func() time.Time) Option {
	return func(s *ClaimService) { s.now = now }
}

// WithIDGenerator replaces the run ID generator
func WithIDGenerator(newID func() string) Option {
	return func(s *ClaimService) { s.newID = newID }
}

// NewClaimService creates a ClaimService. files, folders and repo may be nil
// for callers that only use GenerateTo.
func NewClaimService(
	cfg Config,
	loader *ingestion.Loader,
	reconciler *reconcile.Reconciler,
	writer *claimform.ExcelWriter,
	files storage.FileStorage,
	folders *storage.FolderManager,
	repo RunRepository,
	logger *zap.Logger,
	opts ...Option,
) *ClaimService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Layout.Rows == 0 {
		cfg.Layout = claimform.DefaultLayout()
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = claimform.DefaultPageSize
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = models.FormatPaginated
	}
	s := &ClaimService{
		cfg:        cfg,
		loader:     loader,
		reconciler: reconciler,
		writer:     writer,
		files:      files,
		folders:    folders,
		repo:       repo,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// output is a produced claim document before it is stored
type output struct {
	format    string
	rows      []models.ClaimRow
	diags     []models.Diagnostic
	summary   models.Summary
	pageCount int
	content   []byte
}

// Generate produces the claim document, stores it in the run's folder and
// records the run. Row-level problems are in the run's diagnostics; template,
// configuration and storage failures abort the call.
func (s *ClaimService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if s.files == nil || s.folders == nil || s.repo == nil {
		return nil, errors.New("claim service has no storage configured")
	}

	out, err := s.produce(ctx, req)
	if err != nil {
		return nil, err
	}

	run := &models.ClaimRun{
		ID:          s.newID(),
		Format:      out.format,
		PageCount:   out.pageCount,
		Summary:     out.summary,
		TotalAmount: totalAmount(out.rows),
		Diagnostics: out.diags,
		CreatedAt:   s.now().UTC(),
	}

	folder, err := s.folders.CreateRunFolder(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create run folder: %w", err)
	}
	fileName := OutputFileName(out.format)
	run.OutputPath = filepath.Join(folder, fileName)

	if err := s.files.SaveFile(run.OutputPath, out.content); err != nil {
		_ = s.folders.DeleteRunFolder(run.ID)
		return nil, fmt.Errorf("failed to store claim output: %w", err)
	}

	if err := s.repo.Create(ctx, run); err != nil {
		_ = s.folders.DeleteRunFolder(run.ID)
		return nil, fmt.Errorf("failed to record claim run: %w", err)
	}

	s.logger.Info("Claim generated",
		zap.String("run_id", run.ID),
		zap.String("format", run.Format),
		zap.Int("rows", run.Summary.Total()),
		zap.Int("pages", run.PageCount),
		zap.Int("skipped", run.Summary.Skipped),
		zap.String("total_amount", run.TotalAmount))

	return &GenerateResult{Run: run, Rows: out.rows, FileName: fileName}, nil
}

// GenerateTo produces the claim document into w without storing or recording it
func (s *ClaimService) GenerateTo(ctx context.Context, req GenerateRequest, w io.Writer) (*GenerateResult, error) {
	out, err := s.produce(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(out.content); err != nil {
		return nil, fmt.Errorf("failed to write claim output: %w", err)
	}

	run := &models.ClaimRun{
		Format:      out.format,
		PageCount:   out.pageCount,
		Summary:     out.summary,
		TotalAmount: totalAmount(out.rows),
		Diagnostics: out.diags,
		CreatedAt:   s.now().UTC(),
	}
	return &GenerateResult{Run: run, Rows: out.rows, FileName: OutputFileName(out.format)}, nil
}

func (s *ClaimService) produce(ctx context.Context, req GenerateRequest) (*output, error) {
	format := req.Format
	if format == "" {
		format = s.cfg.DefaultFormat
	}

	// structural problems surface before any input is read
	var renderer *claimform.Renderer
	switch format {
	case models.FormatPaginated:
		header := s.cfg.Header
		if req.Header != nil {
			header = *req.Header
		}
		if s.cfg.PageSize <= 0 || s.cfg.PageSize > s.cfg.Layout.Rows {
			return nil, &claimform.ConfigurationError{
				Field:  "page_size",
				Reason: fmt.Sprintf("%d is outside 1..%d", s.cfg.PageSize, s.cfg.Layout.Rows),
			}
		}
		tmpl, err := claimform.LoadTemplate(s.cfg.TemplatePath, s.cfg.Layout)
		if err != nil {
			return nil, err
		}
		renderer, err = claimform.NewRenderer(tmpl, header, s.logger, claimform.WithClock(s.now))
		if err != nil {
			return nil, err
		}
	case models.FormatCSV, models.FormatFlatXLSX:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}

	receipts, err := s.loader.LoadReceipts(ctx, req.Receipts)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}
	externals, err := s.loader.LoadExternals(ctx, req.Externals)
	if err != nil {
		return nil, fmt.Errorf("failed to load external records: %w", err)
	}

	result := s.reconciler.Reconcile(receipts.Receipts, externals.Externals)

	diags := make([]models.Diagnostic, 0, len(receipts.Diagnostics)+len(externals.Diagnostics)+len(result.Diagnostics))
	diags = append(diags, receipts.Diagnostics...)
	diags = append(diags, externals.Diagnostics...)
	diags = append(diags, result.Diagnostics...)

	summary := result.Summary
	summary.Skipped = models.CountSkipped(diags)
	summary.Warnings = len(diags) - summary.Skipped

	out := &output{format: format, rows: result.Rows, diags: diags, summary: summary}

	var buf bytes.Buffer
	switch format {
	case models.FormatPaginated:
		pages, err := claimform.Paginate(result.Rows, s.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		doc, err := renderer.Render(pages)
		if err != nil {
			return nil, err
		}
		if err := s.writer.Write(ctx, doc, &buf); err != nil {
			return nil, err
		}
		out.pageCount = doc.PageCount()
	case models.FormatCSV:
		if err := claimform.ExportCSV(&buf, result.Rows); err != nil {
			return nil, err
		}
	case models.FormatFlatXLSX:
		if err := claimform.ExportWorkbook(&buf, result.Rows); err != nil {
			return nil, err
		}
	}
	out.content = buf.Bytes()
	return out, nil
}

// Get returns a recorded run with its diagnostics
func (s *ClaimService) Get(ctx context.Context, id string) (*models.ClaimRun, error) {
	if s.repo == nil {
		return nil, ErrRunNotFound
	}
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

// List returns recorded runs, newest first
func (s *ClaimService) List(ctx context.Context, limit, offset int) ([]*models.ClaimRun, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.List(ctx, limit, offset)
}

// Output returns the stored document of a run and its file name
func (s *ClaimService) Output(ctx context.Context, id string) ([]byte, string, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	content, err := s.files.ReadFile(run.OutputPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read output of run %s: %w", id, err)
	}
	return content, filepath.Base(run.OutputPath), nil
}

// OutputFileName returns the stored file name for a format
func OutputFileName(format string) string {
	switch format {
	case models.FormatCSV:
		return "claim_form.csv"
	case models.FormatFlatXLSX:
		return "claim_form_flat.xlsx"
	}
	return "claim_form.xlsx"
}

// totalAmount sums the unrounded row amounts and quantizes once
func totalAmount(rows []models.ClaimRow) string {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.ReimbursableAmount)
	}
	return claimform.FormatAmount(total)
}
