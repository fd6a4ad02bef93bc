package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jpalmerr/balanceboard"
	"github.com/jpalmerr/balanceboard/config"
	"github.com/spf13/cobra"
)

// checkCmd fetches every balance once and prints the result.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch every balance once and print it",
	Long: `Fetch every configured monitor once, bypassing fresh cache entries,
and print the results without starting the server.

Exit codes:
  0 - Every monitor resolved a balance
  1 - At least one monitor failed, or the config is invalid

Example:
  balanceboard check -c config.yaml
  balanceboard check -c config.yaml --json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Bool("json", false, "print results as JSON")
}

// checkResult is the JSON form of one monitor's status.
type checkResult struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	State            string   `json:"state"`
	Balance          float64  `json:"balance"`
	FormattedBalance string   `json:"formattedBalance"`
	Total            *float64 `json:"total,omitempty"`
	Expiry           *float64 `json:"expiry,omitempty"`
	DisplayUnit      string   `json:"displayUnit,omitempty"`
	LastUpdated      int64    `json:"lastUpdated,omitempty"`
	Error            string   `json:"error,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	opts, err := config.BoardOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build monitors: %w", err)
	}
	opts = append(opts, balanceboard.WithLogger(logger))

	board, err := balanceboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create BalanceBoard: %w", err)
	}

	statuses, err := board.Collect(cmd.Context())
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		err = writeJSON(cmd.OutOrStdout(), statuses)
	} else {
		err = writeTable(cmd.OutOrStdout(), statuses)
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, st := range statuses {
		if st.State == balanceboard.StateError {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d monitors failed", failed, len(statuses))
	}
	return nil
}

func writeJSON(w io.Writer, statuses []balanceboard.MonitorStatus) error {
	results := make([]checkResult, len(statuses))
	for i, st := range statuses {
		results[i] = checkResult{
			ID:               st.ID,
			Name:             st.Name,
			State:            st.State.String(),
			Balance:          st.Balance,
			FormattedBalance: st.FormattedBalance,
			Total:            st.Total,
			Expiry:           st.Expiry,
			DisplayUnit:      st.DisplayUnit,
			Error:            st.Error,
		}
		if !st.LastUpdated.IsZero() {
			results[i].LastUpdated = st.LastUpdated.UnixMilli()
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func writeTable(w io.Writer, statuses []balanceboard.MonitorStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tBALANCE\tTOTAL\tDETAIL")
	for _, st := range statuses {
		balance := st.FormattedBalance
		if st.DisplayUnit != "" {
			balance += " " + st.DisplayUnit
		}

		total := "-"
		if st.Total != nil {
			total = balanceboard.FormatAmount(*st.Total, st.Decimals)
		}

		detail := st.Error
		if st.State == balanceboard.StateSuccess {
			detail = "updated " + st.LastUpdated.Format(time.RFC3339)
			if st.Expiry != nil {
				detail += ", expiring " + balanceboard.FormatAmount(*st.Expiry, st.Decimals)
			}
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", st.ID, st.Name, st.State, balance, total, detail)
	}
	return tw.Flush()
}
