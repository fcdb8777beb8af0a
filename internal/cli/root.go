// Package cli implements the stockbutler command-line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd is the base command for stockbutler.
var rootCmd = &cobra.Command{
	Use:   "stockbutler",
	Short: "Household inventory tracker",
	Long: `stockbutler tracks household supplies batch by batch, reminds you of
what is about to expire and mails periodic digests.

Records live in a local SQLite file or, when mirroring is switched on in the
settings, in a remote document database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFile != "" {
			os.Setenv("CONFIG_FILE", configFile)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file overriding the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(sendReportsCmd)
}
