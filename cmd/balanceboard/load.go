package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jpalmerr/balanceboard/config"
	"github.com/spf13/cobra"
)

// newLogger creates a JSON logger on stderr for CLI use.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}

// loadConfig resolves configuration from the --config flag, MONITORS_CONFIG
// and, unless disabled, Infisical.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	noInfisical, _ := cmd.Flags().GetBool("no-infisical")

	var secrets config.SecretSource
	if !noInfisical {
		if src, ok := config.InfisicalFromEnv(); ok {
			secrets = src
		}
	}

	cfg, err := config.Resolve(cmd.Context(), configFile, secrets)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// logWarnings reports entries skipped or coerced during validation.
func logWarnings(logger *slog.Logger, cfg *config.Config) {
	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "detail", w)
	}
}

// monitorIDs lists configured ids for log output.
func monitorIDs(cfg *config.Config) string {
	ids := make([]string, len(cfg.Monitors))
	for i, m := range cfg.Monitors {
		ids[i] = m.ID
	}
	return strings.Join(ids, ",")
}
