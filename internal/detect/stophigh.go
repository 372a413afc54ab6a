// Package detect implements stop-high detection over one instrument's daily
// price history. A stop-high day is one whose intraday high rose by at least
// a threshold fraction over the previous day's close; in the Japanese market
// this corresponds to hitting the daily price-move limit.
package detect

import (
	"math"
	"sort"
	"time"

	"github.com/yshimizu/kabuscan/internal/market"
)

// DefaultThreshold is the default rise-rate threshold (13%).
const DefaultThreshold = 0.13

// openCloseEpsilon bounds |open - close| for the opening-stop-high signal.
const openCloseEpsilon = 0.01

// Event is one day whose intraday rise met the threshold.
type Event struct {
	Date          time.Time
	High          float64
	Close         float64
	Open          float64
	PrevClose     float64
	RiseRate      float64
	CloseRiseRate float64
}

// Result summarizes all stop-high events found in one instrument's history.
// The zero value is the "nothing detected" result.
type Result struct {
	Count            int
	LatestDate       time.Time
	LatestPrice      float64 // high of the latest flagged day
	PrevDayStopHigh  bool
	ClosedAtStopHigh bool
	OpeningStopHigh  bool
}

// StopHigh scans an instrument's bars for stop-high days. The input order is
// irrelevant; bars are sorted by date before processing, so the function is
// idempotent over any permutation of the same set. All rates are plain
// floating-point ratios with no rounding before comparison. A single bar
// has no previous close and can never produce an event.
func StopHigh(bars []market.Bar, threshold float64) Result {
	if len(bars) < 2 {
		return Result{}
	}

	sorted := make([]market.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var events []Event
	for i := 1; i < len(sorted); i++ {
		prevClose := sorted[i-1].Close
		if prevClose <= 0 {
			continue
		}
		riseRate := (sorted[i].High - prevClose) / prevClose
		if riseRate < threshold {
			continue
		}
		events = append(events, Event{
			Date:          sorted[i].Date,
			High:          sorted[i].High,
			Close:         sorted[i].Close,
			Open:          sorted[i].Open,
			PrevClose:     prevClose,
			RiseRate:      riseRate,
			CloseRiseRate: (sorted[i].Close - prevClose) / prevClose,
		})
	}

	if len(events) == 0 {
		return Result{}
	}

	latest := events[len(events)-1]

	result := Result{
		Count:            len(events),
		LatestDate:       latest.Date,
		LatestPrice:      latest.High,
		ClosedAtStopHigh: latest.CloseRiseRate >= threshold,
		OpeningStopHigh:  math.Abs(latest.Open-latest.Close) < openCloseEpsilon && latest.RiseRate >= threshold,
	}

	if len(events) >= 2 {
		prev := events[len(events)-2]
		// Raw calendar-day gap, not a trading-calendar count: two flagged
		// days separated by a weekend or holiday do not count as adjacent.
		gap := latest.Date.Sub(prev.Date).Hours() / 24
		result.PrevDayStopHigh = gap <= 1
	}

	return result
}
