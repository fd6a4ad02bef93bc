package main

import (
	"fmt"

	"github.com/jpalmerr/balanceboard/config"
	"github.com/spf13/cobra"
)

// validateCmd validates configuration without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate BalanceBoard configuration without starting the server.

This command parses the YAML file and MONITORS_CONFIG, expands environment
variables, and validates all fields. Monitors that would be skipped at
startup are listed as warnings. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  balanceboard validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// surface option-level errors (e.g. decimals) before a deploy does
	if _, err := config.BoardOptions(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:             %d\n", cfg.Port)
	fmt.Fprintf(out, "  Refresh interval: %s\n", cfg.RefreshInterval.Duration())
	fmt.Fprintf(out, "  Cache:            %s\n", cfg.Cache.Backend)
	fmt.Fprintf(out, "  Monitors:         %d\n", len(cfg.Monitors))
	for _, m := range cfg.Monitors {
		fmt.Fprintf(out, "    - %s (%s)\n", m.ID, m.Name)
	}

	if len(cfg.Warnings) > 0 {
		fmt.Fprintf(out, "  Warnings:         %d\n", len(cfg.Warnings))
		for _, w := range cfg.Warnings {
			fmt.Fprintf(out, "    ! %s\n", w)
		}
	}

	return nil
}
