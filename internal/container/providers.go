package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/claimform"
	"github.com/garyjia/claim-reconciler/internal/config"
	"github.com/garyjia/claim-reconciler/internal/currency"
	"github.com/garyjia/claim-reconciler/internal/ingestion"
	"github.com/garyjia/claim-reconciler/internal/reconcile"
	"github.com/garyjia/claim-reconciler/internal/service"
	"github.com/garyjia/claim-reconciler/internal/storage"
	"github.com/garyjia/claim-reconciler/pkg/database"
)

// ProvideDatabase opens the run history database and applies pending migrations
func ProvideDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(db, logger).Run(ctx, database.Migrations()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// ProvideLoader builds the ingestion loader with the configured currency
// table and statement column aliases
func ProvideLoader(cfg *config.Config, logger *zap.Logger, opts ...ingestion.Option) (*ingestion.Loader, error) {
	rates, err := currency.NewStaticRates(cfg.Currency.Rates)
	if err != nil {
		return nil, fmt.Errorf("invalid currency rates: %w", err)
	}

	var base []ingestion.Option
	if len(cfg.Claim.External.ColumnAliases) > 0 {
		base = append(base, ingestion.WithColumnAliases(cfg.Claim.External.ColumnAliases))
	}
	if cfg.Claim.External.DefaultSource != "" {
		base = append(base, ingestion.WithDefaultSource(cfg.Claim.External.DefaultSource))
	}
	return ingestion.NewLoader(currency.NewConverter(cfg.Currency.Base, rates), logger, append(base, opts...)...), nil
}

// ProvideClaimService builds the claim pipeline. repo may be nil for callers
// that only write to a stream; output storage is then left unset too.
func ProvideClaimService(cfg *config.Config, repo service.RunRepository, logger *zap.Logger, opts ...service.Option) (*service.ClaimService, error) {
	header, err := cfg.Claim.Header.HeaderFields()
	if err != nil {
		return nil, err
	}
	loader, err := ProvideLoader(cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		files   storage.FileStorage
		folders *storage.FolderManager
	)
	if repo != nil {
		files = storage.NewLocalFileStorage(cfg.Claim.OutputDir, logger)
		folders = storage.NewFolderManager(cfg.Claim.OutputDir, logger)
	}

	return service.NewClaimService(
		service.Config{
			TemplatePath:  cfg.Claim.TemplatePath,
			Layout:        cfg.Claim.Layout,
			PageSize:      cfg.Claim.PageSize,
			DefaultFormat: cfg.Claim.DefaultFormat,
			Header:        header,
		},
		loader,
		reconcile.NewReconciler(logger),
		claimform.NewExcelWriter(cfg.Claim.FontName, logger),
		files,
		folders,
		repo,
		logger,
		opts...,
	), nil
}
