// Package market defines the canonical data model shared by every stage of
// the scan pipeline: instruments, daily bars and the final result rows.
package market

import "time"

// DateFormat is the canonical wire format for calendar dates.
const DateFormat = "2006-01-02"

// Instrument is one listed equity from the instrument directory.
// Identity is the (normalized) code; name and segment are optional.
type Instrument struct {
	Code              string
	DisplayName       string
	MarketSegmentName string
}

// Bar is one instrument's daily OHLCV, normalized from the vendor shape.
// A Bar is immutable once constructed.
type Bar struct {
	InstrumentCode string
	Date           time.Time
	Open           float64
	High           float64
	Low            float64
	Close          float64
	Volume         int64
}

// Candidate is a universe entry that survived the segment and price-band
// filters: a priced instrument joined with its directory metadata. An
// instrument missing from the directory keeps empty name/market fields.
type Candidate struct {
	Code        string
	CompanyName string
	Market      string
	LatestPrice float64
}

// ScanResultRow is one detected instrument in the final result set.
type ScanResultRow struct {
	Code                string  `json:"code"`
	CompanyName         string  `json:"companyName"`
	Market              string  `json:"market"`
	StopHighCount       int     `json:"stopHighCount"`
	LatestStopHighDate  string  `json:"latestStopHighDate"`
	LatestStopHighPrice float64 `json:"latestStopHighPrice"`
	LatestClose         float64 `json:"latestClose"`
	PrevDayStopHigh     bool    `json:"prevDayStopHigh"`
	ClosedAtStopHigh    bool    `json:"closedAtStopHigh"`
	OpeningStopHigh     bool    `json:"openingStopHigh"`
}
