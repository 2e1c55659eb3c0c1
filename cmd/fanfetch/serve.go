package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/fanfetch"
	"github.com/jpalmerr/fanfetch/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger on stderr for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve outcomes over HTTP",
	Long: `Start the fanfetch HTTP service.

The service will:
  - Load configuration from the specified YAML file
  - Dispatch every configured request once at startup
  - Re-dispatch on POST /api/dispatch
  - Serve the latest outcomes on GET /api/outcomes and GET /api/sse

The service runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  fanfetch serve -c config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(slog.LevelInfo)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"title", cfg.Title,
		"descriptors", len(cfg.Descriptors),
		"grids", len(cfg.Grids),
	)

	descriptors, err := config.BuildDescriptors(cfg)
	if err != nil {
		return fmt.Errorf("failed to build descriptors: %w", err)
	}

	opts := append(config.Options(cfg), fanfetch.WithLogger(logger))
	d, err := fanfetch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Serve(ctx, descriptors...)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
