// Command claimgen reconciles receipts with toll and charging statements and
// writes the claim form to a file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/garyjia/claim-reconciler/internal/config"
	"github.com/garyjia/claim-reconciler/internal/container"
	"github.com/garyjia/claim-reconciler/internal/ingestion"
	"github.com/garyjia/claim-reconciler/internal/models"
	"github.com/garyjia/claim-reconciler/internal/service"
	"github.com/garyjia/claim-reconciler/pkg/utils"
)

type options struct {
	configPath    string
	receipts      string
	externals     string
	out           string
	format        string
	template      string
	pageSize      int
	employee      string
	department    string
	approver      string
	periodStart   string
	periodEnd     string
	signatureDate string
	defaultSource string
	logLevel      string
}

func main() {
	config.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	fs := ff.NewFlagSet("claimgen")
	fs.StringVar(&opts.configPath, 0, "config", "", "YAML configuration file")
	fs.StringVar(&opts.receipts, 'r', "receipts", "", "comma-separated receipt files (json, csv, xlsx, images, pdf)")
	fs.StringVar(&opts.externals, 'e', "external", "", "comma-separated toll/charging statements (csv, xlsx, json)")
	fs.StringVar(&opts.out, 'o', "out", "", "output file")
	fs.StringVar(&opts.format, 'f', "format", "", "paginated, csv or xlsx; default from config or the output extension")
	fs.StringVar(&opts.template, 't', "template", "", "claim form template (.xlsx)")
	fs.IntVar(&opts.pageSize, 0, "page-size", 0, "data rows per form page")
	fs.StringVar(&opts.employee, 0, "employee", "", "employee name on the form")
	fs.StringVar(&opts.department, 0, "department", "", "department on the form")
	fs.StringVar(&opts.approver, 0, "approver", "", "approver on the form")
	fs.StringVar(&opts.periodStart, 0, "period-start", "", "claim period start, YYYY-MM-DD")
	fs.StringVar(&opts.periodEnd, 0, "period-end", "", "claim period end, YYYY-MM-DD")
	fs.StringVar(&opts.signatureDate, 0, "signature-date", "", "signature date, YYYY-MM-DD; default today")
	fs.StringVar(&opts.defaultSource, 0, "default-source", "", "source for statements without a source column (etc, charging)")
	fs.StringVar(&opts.logLevel, 0, "log-level", "warn", "debug, info, warn or error")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("CLAIMGEN")); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.out == "" {
		return errors.New("--out is required")
	}
	receipts := splitList(opts.receipts)
	externals := splitList(opts.externals)
	if len(receipts) == 0 && len(externals) == 0 {
		return errors.New("at least one of --receipts or --external is required")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{Level: opts.logLevel, OutputPath: "stderr", Format: "console"})
	if err != nil {
		return err
	}
	defer logger.Sync()

	claims, err := container.ProvideClaimService(cfg, nil, logger)
	if err != nil {
		return err
	}

	req := service.GenerateRequest{Format: cfg.Claim.DefaultFormat}
	if req.Receipts, err = readFiles(receipts); err != nil {
		return err
	}
	if req.Externals, err = readFiles(externals); err != nil {
		return err
	}

	result, err := generate(ctx, claims, req, opts.out)
	if err != nil {
		return err
	}

	report(stdout, stderr, result, opts.out)
	return nil
}

// apply layers explicit flags over the loaded configuration
func (o options) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Claim.TemplatePath, o.template)
	set(&cfg.Claim.Header.Employee, o.employee)
	set(&cfg.Claim.Header.Department, o.department)
	set(&cfg.Claim.Header.Approver, o.approver)
	set(&cfg.Claim.Header.PeriodStart, o.periodStart)
	set(&cfg.Claim.Header.PeriodEnd, o.periodEnd)
	set(&cfg.Claim.Header.SignatureDate, o.signatureDate)
	set(&cfg.Claim.External.DefaultSource, o.defaultSource)
	if o.pageSize != 0 {
		cfg.Claim.PageSize = o.pageSize
	}

	switch {
	case o.format != "":
		cfg.Claim.DefaultFormat = strings.ToLower(o.format)
	case strings.EqualFold(filepath.Ext(o.out), ".csv"):
		cfg.Claim.DefaultFormat = models.FormatCSV
	}
}

// generate writes the claim to a temporary file next to path and renames it
// into place, so a failed run never leaves a partial document behind.
func generate(ctx context.Context, claims *service.ClaimService, req service.GenerateRequest, path string) (*service.GenerateResult, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".claimgen-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	result, err := claims.GenerateTo(ctx, req, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write output file: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("failed to move output file into place: %w", err)
	}
	return result, nil
}

func report(stdout, stderr io.Writer, result *service.GenerateResult, path string) {
	s := result.Run.Summary
	fmt.Fprintf(stdout, "Prepared %d rows (matched: %d, receipt only: %d, external only: %d, needs amount: %d)\n",
		s.Total(), s.Matched, s.ReceiptOnly, s.ExternalOnly, s.NeedsAmount)
	if result.Run.PageCount > 0 {
		fmt.Fprintf(stdout, "Pages: %d\n", result.Run.PageCount)
	}
	fmt.Fprintf(stdout, "Total amount: %s\n", result.Run.TotalAmount)
	fmt.Fprintf(stdout, "Claim form generated: %s\n", path)

	if len(result.Run.Diagnostics) > 0 {
		fmt.Fprintf(stderr, "%d skipped, %d warnings:\n", s.Skipped, s.Warnings)
		for _, d := range result.Run.Diagnostics {
			fmt.Fprintf(stderr, "  %s\n", d)
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func readFiles(paths []string) ([]ingestion.File, error) {
	files := make([]ingestion.File, 0, len(paths))
	for _, p := range paths {
		f, err := ingestion.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
