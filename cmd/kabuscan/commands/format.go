package commands

import (
	"fmt"

	"github.com/yshimizu/kabuscan/internal/market"
	"github.com/yshimizu/kabuscan/internal/scan"
)

// printTableHeader prints a table header with a separator line.
func printTableHeader(columns []string, widths []int) {
	printTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2
		}
	}
	for i := 0; i < totalWidth; i++ {
		fmt.Print("-")
	}
	fmt.Println()
}

// printTableRow prints one table row
func printTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// flag formats a boolean sub-signal for the result table.
func flag(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

// printScanReport renders a scan report as a human-readable table.
func printScanReport(report *scan.Report) {
	fmt.Printf("Trade date: %s\n", report.TradeDate.Format(market.DateFormat))
	fmt.Printf("Processed %d, detected %d, failures %d (%s)\n\n",
		report.Summary.Processed, report.Summary.Detected,
		report.Summary.Failures, string(report.Stage))

	if len(report.Rows) == 0 {
		fmt.Println("No stop-high instruments found.")
		return
	}

	columns := []string{"Code", "Name", "Market", "Count", "Latest", "High", "Close", "Streak", "ClosedAt", "Opening"}
	widths := []int{6, 20, 16, 5, 10, 9, 9, 6, 8, 7}

	printTableHeader(columns, widths)
	for _, row := range report.Rows {
		printTableRow([]string{
			row.Code,
			row.CompanyName,
			row.Market,
			fmt.Sprintf("%d", row.StopHighCount),
			row.LatestStopHighDate,
			fmt.Sprintf("%.1f", row.LatestStopHighPrice),
			fmt.Sprintf("%.1f", row.LatestClose),
			flag(row.PrevDayStopHigh),
			flag(row.ClosedAtStopHigh),
			flag(row.OpeningStopHigh),
		}, widths)
	}
}
