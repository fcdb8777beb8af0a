package cli

import (
	"encoding/json"
	"fmt"

	"stockbutler/internal/logger"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge used-up records past the retention window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.tracker.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d record(s)\n", removed)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print today's digest as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.tracker.Report(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

var sendReportsCmd = &cobra.Command{
	Use:   "send-reports",
	Short: "Mail every subscriber whose report cycle has elapsed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.mailer.IsEnabled() {
			logger.Warn("Mailgun not configured, skipping scheduled reports")
			return nil
		}

		sent, err := a.tracker.DispatchScheduled(cmd.Context(), a.mailer)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d report(s)\n", sent)
		return nil
	},
}
