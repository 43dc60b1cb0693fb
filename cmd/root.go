package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"curestat/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "curestat",
	Short: "curestat - medical report analysis and outbreak trends",
	Long: `curestat extracts diseases and prescribed medications from scanned
medical reports and aggregates public disease outbreak data into
per-disease totals.

Reports are read with Google Cloud Vision or Document AI OCR. Trends are
fetched from the data.gov.in outbreak dataset (or any endpoint returning
{"records": [...]}).

Run "curestat serve" to expose both over HTTP.`,
	Version:      version,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("curestat executed without subcommand")

		_ = cmd.Help()
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
