package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"go.uber.org/zap"

	"github.com/garyjia/claim-reconciler/internal/config"
	"github.com/garyjia/claim-reconciler/internal/container"
	httpapi "github.com/garyjia/claim-reconciler/internal/interfaces/http"
	"github.com/garyjia/claim-reconciler/pkg/utils"
)

func main() {
	if f := config.LoadDotEnv(); f != "" {
		fmt.Fprintf(os.Stderr, "Loaded environment from %s\n", f)
	}

	fs := ff.NewFlagSet("claim-server")
	configPath := fs.StringLong("config", "configs/config.yaml", "YAML configuration file; skipped when missing")
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix(config.EnvPrefix)); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(*configPath); err != nil {
		*configPath = ""
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting claim reconciler",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer c.Close()

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxUploadMB:  cfg.Server.MaxUploadMB,
	}, c.ClaimService(), c.Header(), logger, httpapi.WithHealthCheck(c.Check))

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}
