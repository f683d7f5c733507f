package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/proctrack"
	"github.com/loykin/proctrack/internal/logger"
)

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the proctrack server",
		Long: `Start the HTTP and websocket server together with the broadcast loop.
Configuration comes from the TOML file (optional) and PROCTRACK_* environment
variables, e.g. PROCTRACK_STORE_DSN=postgres://user:pass@db/proctrack.

Examples:
  proctrack serve
  proctrack serve proctrack.toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, path)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := proctrack.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	if cfg.Metrics.Enabled {
		if err := proctrack.RegisterMetricsDefault(); err != nil {
			log.Warn("failed to register metrics", "error", err)
		}
		ms := proctrack.NewMetricsServer(cfg.Metrics.Listen)
		go func() {
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
			}
		}()
		defer func() { _ = ms.Close() }()
		log.Info("serving metrics", "addr", cfg.Metrics.Listen)
	}

	app, err := proctrack.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	err = app.Run(ctx, nil)
	log.Info("shut down")
	return err
}
