// Package container wires the claim pipeline from configuration and owns the
// lifecycle of its long-lived resources.
package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/claimform"
	"github.com/garyjia/claim-reconciler/internal/config"
	"github.com/garyjia/claim-reconciler/internal/repository"
	"github.com/garyjia/claim-reconciler/internal/service"
	"github.com/garyjia/claim-reconciler/pkg/database"
)

// Container holds the server's dependencies.
// Start initializes them in dependency order; Close releases them in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	db     *database.DB
	repo   *repository.RunRepository
	header claimform.HeaderFields
	claims *service.ClaimService

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewContainer creates a container from configuration.
// It does not initialize components; call Start.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{config: cfg, logger: logger}, nil
}

// Start opens the database, applies migrations, prepares the output
// directory and builds the claim service.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("container has been closed")
	}
	if c.started {
		return errors.New("container already started")
	}

	c.logger.Info("Starting container initialization")

	db, err := ProvideDatabase(ctx, c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db
	c.repo = repository.NewRunRepository(db, c.logger)
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	if err := os.MkdirAll(c.config.Claim.OutputDir, 0755); err != nil {
		c.db.Close()
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	header, err := c.config.Claim.Header.HeaderFields()
	if err != nil {
		c.db.Close()
		return err
	}
	c.header = header

	claims, err := ProvideClaimService(c.config, c.repo, c.logger)
	if err != nil {
		c.db.Close()
		return fmt.Errorf("failed to initialize claim service: %w", err)
	}
	c.claims = claims

	c.started = true
	c.logger.Info("Container started successfully")
	return nil
}

// Close releases resources in reverse order of Start
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("container already closed")
	}
	c.closed = true

	c.logger.Info("Closing container")
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			return fmt.Errorf("close database: %w", err)
		}
	}
	c.logger.Info("Container closed")
	return nil
}

// Check reports whether the database and the claim template are usable
func (c *Container) Check(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.closed {
		return errors.New("container not running")
	}
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if _, err := os.Stat(c.config.Claim.TemplatePath); err != nil {
		return fmt.Errorf("claim template: %w", err)
	}
	return nil
}

// ClaimService returns the claim pipeline; nil before Start
func (c *Container) ClaimService() *service.ClaimService {
	return c.claims
}

// Header returns the configured form header
func (c *Container) Header() claimform.HeaderFields {
	return c.header
}

// Logger returns the container's logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}
