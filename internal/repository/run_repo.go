package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/models"
	"github.com/garyjia/claim-reconciler/pkg/database"
)

// RunRepository stores the history of claim generations
type RunRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *database.DB, logger *zap.Logger) *RunRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a run and its diagnostics in one transaction
func (r *RunRepository) Create(ctx context.Context, run *models.ClaimRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO claim_runs (
				id, format, output_path, page_count,
				matched, receipt_only, external_only, needs_amount, skipped, warnings,
				total_amount, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			run.Format,
			run.OutputPath,
			run.PageCount,
			run.Summary.Matched,
			run.Summary.ReceiptOnly,
			run.Summary.ExternalOnly,
			run.Summary.NeedsAmount,
			run.Summary.Skipped,
			run.Summary.Warnings,
			run.TotalAmount,
			run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO claim_run_diagnostics (
				run_id, position, kind, origin, source, row_index, field, message
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare diagnostics insert: %w", err)
		}
		defer stmt.Close()

		for i, d := range run.Diagnostics {
			if _, err := stmt.ExecContext(ctx, run.ID, i, string(d.Kind), d.Origin, d.Source, d.Index, d.Field, d.Message); err != nil {
				return fmt.Errorf("failed to insert diagnostic %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to create claim run", zap.String("run_id", run.ID), zap.Error(err))
		return err
	}
	return nil
}

const runColumns = `
	id, format, output_path, page_count,
	matched, receipt_only, external_only, needs_amount, skipped, warnings,
	total_amount, created_at
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*models.ClaimRun, error) {
	var run models.ClaimRun
	err := s.Scan(
		&run.ID,
		&run.Format,
		&run.OutputPath,
		&run.PageCount,
		&run.Summary.Matched,
		&run.Summary.ReceiptOnly,
		&run.Summary.ExternalOnly,
		&run.Summary.NeedsAmount,
		&run.Summary.Skipped,
		&run.Summary.Warnings,
		&run.TotalAmount,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetByID retrieves a run with its diagnostics. It returns nil, nil when the run does not exist.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.ClaimRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM claim_runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get claim run", zap.String("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, origin, source, row_index, field, message
		FROM claim_run_diagnostics
		WHERE run_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d models.Diagnostic
		var kind string
		if err := rows.Scan(&kind, &d.Origin, &d.Source, &d.Index, &d.Field, &d.Message); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		d.Kind = models.DiagnosticKind(kind)
		run.Diagnostics = append(run.Diagnostics, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read diagnostics: %w", err)
	}
	return run, nil
}

// List returns runs newest first, without diagnostics
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*models.ClaimRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM claim_runs ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		r.logger.Error("Failed to list claim runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ClaimRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
