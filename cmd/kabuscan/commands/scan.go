package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yshimizu/kabuscan/internal/market"
	"github.com/yshimizu/kabuscan/internal/scan"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one stop-high scan",
	Long: `Runs one stop-high scan and streams progress and the final result to
stdout as newline-delimited JSON. Log output goes to stderr, so stdout can
be piped or redirected as a clean event stream.

Each line is one record:
  {"type":"log","message":"..."}            progress
  {"type":"error","message":"...","code":"1234"}  per-instrument failure
  {"type":"result","data":{...}}            terminal record, always last on success

Example:
  go run ./cmd/kabuscan scan
  go run ./cmd/kabuscan scan --max-stocks 50 --threshold 0.15
  go run ./cmd/kabuscan scan --date 2024-01-09 > results.ndjson`,
	RunE: runScan,
}

var (
	scanMaxStocks int
	scanThreshold float64
	scanDate      string
	scanPretty    bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntVar(&scanMaxStocks, "max-stocks", 0, "cap the number of instruments scanned (0 = no cap)")
	scanCmd.Flags().Float64Var(&scanThreshold, "threshold", 0, "detection threshold override (0 = configured default)")
	scanCmd.Flags().StringVar(&scanDate, "date", "", "reference date YYYY-MM-DD (default today)")
	scanCmd.Flags().BoolVar(&scanPretty, "pretty", false, "print a result table instead of the NDJSON stream")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, log, orchestrator, err := buildScanner()
	if err != nil {
		return err
	}

	ref := time.Now()
	if scanDate != "" {
		ref, err = time.Parse(market.DateFormat, scanDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", scanDate, err)
		}
	}

	opts := scan.FromConfig(cfg.Scan, ref)
	if scanMaxStocks > 0 {
		opts.MaxStocks = scanMaxStocks
	}
	if scanThreshold > 0 {
		opts.Threshold = scanThreshold
	}

	var sink scan.Sink = scan.NewStreamWriter(os.Stdout)
	if scanPretty {
		// Pretty mode replaces the stdout stream with a final table;
		// progress still reaches stderr through the structured log.
		sink = scan.SinkFunc(func(e scan.Event) {
			if e.Type == scan.EventError {
				log.WithField("code", e.Code).Warn(e.Message)
			} else if e.Type == scan.EventLog {
				log.WithField("code", e.Code).Debug(e.Message)
			}
		})
	}

	report, err := orchestrator.Run(cmd.Context(), opts, sink)
	if err != nil {
		// In stream mode the terminal error record is already on stdout.
		log.WithError(err).Error("Scan failed")
		return err
	}

	if scanPretty {
		printScanReport(report)
	}

	log.WithFields(map[string]interface{}{
		"trade_date": report.TradeDate.Format(market.DateFormat),
		"detected":   report.Summary.Detected,
		"stage":      string(report.Stage),
	}).Info("Scan finished")

	return nil
}
