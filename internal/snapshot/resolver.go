// Package snapshot resolves the most recent trading day. Market calendars
// (holidays, suspensions) make "latest trading day" indeterminate without
// probing, so the resolver walks calendar days backward until one yields
// market-wide price data, within a bounded lookback window.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/yshimizu/kabuscan/internal/external/jquants"
	"github.com/yshimizu/kabuscan/internal/market"
	"github.com/yshimizu/kabuscan/pkg/logger"
)

// ErrNoTradingDay is returned when the lookback budget is exhausted without
// finding any day with data. Callers must treat this as a hard stop, not as
// a silent empty scan.
var ErrNoTradingDay = errors.New("snapshot: no trading day found within lookback window")

// QuoteSource provides the market-wide daily bar set for one calendar date.
type QuoteSource interface {
	DailyQuotesByDate(ctx context.Context, date time.Time) ([]jquants.DailyQuote, error)
}

// Resolver probes single days backward until one yields nonempty data.
type Resolver struct {
	source     QuoteSource
	logger     *logger.Logger
	probeDelay time.Duration

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// NewResolver creates a resolver with the given inter-probe pause.
func NewResolver(source QuoteSource, log *logger.Logger, probeDelay time.Duration) *Resolver {
	return &Resolver{
		source:     source,
		logger:     log,
		probeDelay: probeDelay,
		sleep:      time.Sleep,
	}
}

// Resolve probes backward from endDate, one calendar day at a time, up to
// maxLookbackDays steps. The first day with a nonempty bar set wins and its
// bars are collapsed into the latest-snapshot map. Not-found and transient
// failures both advance to the previous day; a transient failure is not
// retried at the same date. The inter-probe pause is applied after every
// probe, including the last one before giving up.
func (r *Resolver) Resolve(ctx context.Context, endDate time.Time, maxLookbackDays int) (map[string]market.Bar, time.Time, error) {
	for step := 0; step <= maxLookbackDays; step++ {
		candidate := endDate.AddDate(0, 0, -step)

		quotes, err := r.source.DailyQuotesByDate(ctx, candidate)
		r.sleep(r.probeDelay)

		switch {
		case err != nil && errors.Is(err, jquants.ErrNoData):
			r.logger.WithField("date", candidate.Format(market.DateFormat)).
				Debug("No market data for date, probing previous day")
		case err != nil:
			r.logger.WithError(err).
				WithField("date", candidate.Format(market.DateFormat)).
				Warn("Market data probe failed, probing previous day")
		case len(quotes) == 0:
			r.logger.WithField("date", candidate.Format(market.DateFormat)).
				Debug("Empty market data for date, probing previous day")
		default:
			r.logger.WithFields(map[string]interface{}{
				"date":   candidate.Format(market.DateFormat),
				"quotes": len(quotes),
				"probes": step + 1,
			}).Info("Resolved latest trading day")
			return LatestSnapshot(quotes), candidate, nil
		}
	}

	return nil, time.Time{}, ErrNoTradingDay
}

// LatestSnapshot collapses a market-wide bar set into one Bar per normalized
// instrument code, keeping the bar with the maximum date regardless of input
// order.
func LatestSnapshot(quotes []jquants.DailyQuote) map[string]market.Bar {
	latest := make(map[string]market.Bar, len(quotes))
	for _, q := range quotes {
		bar := q.Bar()
		key := market.NormalizeCode(bar.InstrumentCode)
		if prev, ok := latest[key]; ok && !bar.Date.After(prev.Date) {
			continue
		}
		latest[key] = bar
	}
	return latest
}
