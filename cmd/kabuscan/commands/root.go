package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kabuscan",
	Short: "kabuscan - JPX stop-high scanner",
	Long: `kabuscan scans listed JPX equities for stop-high days: sessions whose
high rose a configured fraction over the previous close.

Usage:
  go run ./cmd/kabuscan [command]

Examples:
  go run ./cmd/kabuscan scan
  go run ./cmd/kabuscan scan --max-stocks 50 > results.ndjson
  go run ./cmd/kabuscan api
  go run ./cmd/kabuscan scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
