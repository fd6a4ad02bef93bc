// Package main is the entry point for the balanceboard CLI.
//
// BalanceBoard can be embedded as a library or run as a standalone binary
// configured by YAML, the MONITORS_CONFIG environment variable, or an
// Infisical secret of the same name.
//
// Usage:
//
//	balanceboard serve -c config.yaml    # Start the dashboard
//	balanceboard check -c config.yaml    # Fetch every balance once
//	balanceboard validate -c config.yaml # Validate configuration
//	balanceboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "balanceboard",
	Short: "A dashboard for API credit and quota balances",
	Long: `BalanceBoard tracks the remaining credits, quotas and balances exposed
by HTTP APIs and shows them on a live dashboard.

Quick start:
  1. Create a config file (balanceboard.yaml)
  2. Run: balanceboard serve -c balanceboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  refresh_interval: 5m
  monitors:
    - id: openai
      name: OpenAI
      url: https://api.example.com/credits
      balanceField: data.remaining
      displayUnit: USD
      auth:
        type: bearer
        token: ${OPENAI_KEY}

Monitors may also be given as a JSON array in MONITORS_CONFIG. When that
variable is unset and INFISICAL_CLIENT_ID, INFISICAL_CLIENT_SECRET and
INFISICAL_PROJECT_ID are set, the MONITORS_CONFIG secret is read from
Infisical instead.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this balanceboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "balanceboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("no-infisical", false, "do not read MONITORS_CONFIG from Infisical")

	rootCmd.AddCommand(versionCmd)
}
