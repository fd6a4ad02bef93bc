package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/balanceboard"
	"github.com/jpalmerr/balanceboard/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the BalanceBoard dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the BalanceBoard dashboard server.

The server will:
  - Resolve configuration from the config file and MONITORS_CONFIG
  - Refresh every monitor immediately and then on the refresh interval
  - Serve the dashboard, JSON API, SSE stream and metrics on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  balanceboard serve -c config.yaml
  MONITORS_CONFIG='[{"id":"a","name":"A","url":"https://..."}]' balanceboard serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logWarnings(logger, cfg)

	logger.Info("config loaded",
		"monitors", len(cfg.Monitors),
		"ids", monitorIDs(cfg),
		"cache", cfg.Cache.Backend,
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"refresh_interval", cfg.RefreshInterval.Duration().String(),
	)

	opts, err := config.BoardOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build monitors: %w", err)
	}
	opts = append(opts, balanceboard.WithLogger(logger))

	board, err := balanceboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create BalanceBoard: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- board.Start(ctx)
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
