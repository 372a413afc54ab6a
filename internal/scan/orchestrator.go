package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/yshimizu/kabuscan/internal/detect"
	"github.com/yshimizu/kabuscan/internal/external/jquants"
	"github.com/yshimizu/kabuscan/internal/market"
	"github.com/yshimizu/kabuscan/internal/universe"
	"github.com/yshimizu/kabuscan/pkg/config"
	"github.com/yshimizu/kabuscan/pkg/logger"
)

// Stage is the orchestrator's position in the scan state machine.
type Stage string

const (
	StageIdle                Stage = "idle"
	StageFetchingDirectory   Stage = "fetching_directory"
	StageFilteringUniverse   Stage = "filtering_universe"
	StageResolvingSnapshot   Stage = "resolving_snapshot"
	StageScanningInstruments Stage = "scanning_instruments"
	StageCompleted           Stage = "completed"
	StageAborted             Stage = "aborted"
)

// DirectorySource provides the instrument universe.
type DirectorySource interface {
	ListedInfo(ctx context.Context) ([]market.Instrument, error)
}

// HistorySource provides one instrument's daily bars for a date range.
type HistorySource interface {
	DailyQuotesByCode(ctx context.Context, code string, from, to time.Time) ([]jquants.DailyQuote, error)
}

// SnapshotResolver resolves the latest trading day and its market-wide bars.
type SnapshotResolver interface {
	Resolve(ctx context.Context, endDate time.Time, maxLookbackDays int) (map[string]market.Bar, time.Time, error)
}

// Options configures a single scan invocation. Zero-valued fields are filled
// from defaults by FromConfig; ReferenceTime anchors both the trading-day
// probe and the per-instrument history window so runs are reproducible.
type Options struct {
	MinPrice      float64
	MaxPrice      float64
	MaxStocks     int // 0 means no cap
	Threshold     float64
	Delay         time.Duration
	LookbackDays  int
	HistoryMonths int
	FailureBudget int
	Segments      []string
	ReferenceTime time.Time
}

// FromConfig builds Options from the configured scan defaults, anchored at
// the given reference time.
func FromConfig(cfg config.ScanConfig, ref time.Time) Options {
	return Options{
		MinPrice:      cfg.MinPrice,
		MaxPrice:      cfg.MaxPrice,
		MaxStocks:     cfg.MaxStocks,
		Threshold:     cfg.Threshold,
		Delay:         cfg.Delay,
		LookbackDays:  cfg.LookbackDays,
		HistoryMonths: cfg.HistoryMonths,
		FailureBudget: cfg.FailureBudget,
		Segments:      cfg.Segments,
		ReferenceTime: ref,
	}
}

// Report is what Run returns to the caller, mirroring the terminal result
// event for programmatic use.
type Report struct {
	TradeDate time.Time
	Rows      []market.ScanResultRow
	Summary   Summary
	Stage     Stage
}

// Orchestrator sequences the scan pipeline. The flow is strictly
// sequential: one logical thread of control, no per-instrument fan-out, so
// the two throttles bound the request rate against the upstream source.
type Orchestrator struct {
	directory DirectorySource
	history   HistorySource
	resolver  SnapshotResolver
	logger    *logger.Logger

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// New creates an orchestrator over the given sources.
func New(directory DirectorySource, history HistorySource, resolver SnapshotResolver, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		directory: directory,
		history:   history,
		resolver:  resolver,
		logger:    log,
		sleep:     time.Sleep,
	}
}

// Run executes one scan, emitting progress events to sink as work completes
// and exactly one terminal event last: a result event when the scan produced
// a result (including a failure-budget abort with partial rows), or an error
// event on a structural failure, in which case Run also returns the error.
func (o *Orchestrator) Run(ctx context.Context, opts Options, sink Sink) (*Report, error) {
	stage := StageIdle
	setStage := func(next Stage) {
		stage = next
		o.logger.WithField("stage", string(next)).Debug("Scan stage transition")
	}

	fail := func(msg string, err error) (*Report, error) {
		wrapped := fmt.Errorf("%s: %w", msg, err)
		sink.Emit(errorEvent(wrapped.Error()))
		return nil, wrapped
	}

	// Directory
	setStage(StageFetchingDirectory)
	sink.Emit(logEvent("fetching instrument directory"))
	instruments, err := o.directory.ListedInfo(ctx)
	if err != nil {
		return fail("instrument directory fetch failed", err)
	}
	if len(instruments) == 0 {
		return fail("instrument directory fetch failed", fmt.Errorf("directory is empty"))
	}
	sink.Emit(logEvent(fmt.Sprintf("instrument directory loaded: %d instruments", len(instruments))))

	// Segment filter
	setStage(StageFilteringUniverse)
	filter := universe.Filter{
		Segments: opts.Segments,
		MinPrice: opts.MinPrice,
		MaxPrice: opts.MaxPrice,
	}
	segmentFiltered := universe.FilterBySegment(instruments, opts.Segments)
	if len(segmentFiltered) == 0 {
		return fail("universe filtering failed", fmt.Errorf("no instruments match segments %v", opts.Segments))
	}
	sink.Emit(logEvent(fmt.Sprintf("segment filter kept %d instruments", len(segmentFiltered))))

	// Snapshot resolution and price-band join
	setStage(StageResolvingSnapshot)
	sink.Emit(logEvent("resolving latest trading day"))
	latest, tradeDate, err := o.resolver.Resolve(ctx, opts.ReferenceTime, opts.LookbackDays)
	if err != nil {
		return fail("trading day resolution failed", err)
	}
	sink.Emit(logEvent(fmt.Sprintf("trade date resolved: %s", tradeDate.Format(market.DateFormat))))

	candidates := filter.Apply(instruments, latest)
	if len(candidates) == 0 {
		return fail("universe filtering failed",
			fmt.Errorf("no instruments priced within [%v, %v]", opts.MinPrice, opts.MaxPrice))
	}
	if opts.MaxStocks > 0 && len(candidates) > opts.MaxStocks {
		candidates = candidates[:opts.MaxStocks]
	}
	sink.Emit(logEvent(fmt.Sprintf("scanning %d instruments", len(candidates))))

	// Per-instrument scan
	setStage(StageScanningInstruments)
	from := tradeDate.AddDate(0, -opts.HistoryMonths, 0)

	// rows stays non-nil so the terminal event carries [] rather than null.
	rows := make([]market.ScanResultRow, 0)
	var summary Summary
	lastIdx := len(candidates) - 1

	for i, candidate := range candidates {
		summary.Processed++

		aborted := func() bool {
			quotes, err := o.history.DailyQuotesByCode(ctx, candidate.Code, from, tradeDate)
			if err != nil {
				summary.Failures++
				sink.Emit(codeErrorEvent(candidate.Code,
					fmt.Sprintf("history fetch failed: %v", err)))
				if summary.Failures >= opts.FailureBudget {
					sink.Emit(errorEvent(fmt.Sprintf(
						"failure budget exhausted (%d failures), aborting scan", summary.Failures)))
					return true
				}
				return false
			}
			if len(quotes) == 0 {
				sink.Emit(codeLogEvent(candidate.Code, "no data"))
				return false
			}

			bars := make([]market.Bar, 0, len(quotes))
			lastBar := market.Bar{}
			for _, q := range quotes {
				bar := q.Bar()
				bars = append(bars, bar)
				if bar.Date.After(lastBar.Date) {
					lastBar = bar
				}
			}

			result := detect.StopHigh(bars, opts.Threshold)
			if result.Count == 0 {
				sink.Emit(codeLogEvent(candidate.Code, "not detected"))
				return false
			}

			rows = append(rows, market.ScanResultRow{
				Code:                candidate.Code,
				CompanyName:         candidate.CompanyName,
				Market:              candidate.Market,
				StopHighCount:       result.Count,
				LatestStopHighDate:  result.LatestDate.Format(market.DateFormat),
				LatestStopHighPrice: result.LatestPrice,
				LatestClose:         lastBar.Close,
				PrevDayStopHigh:     result.PrevDayStopHigh,
				ClosedAtStopHigh:    result.ClosedAtStopHigh,
				OpeningStopHigh:     result.OpeningStopHigh,
			})
			summary.Detected++
			sink.Emit(codeLogEvent(candidate.Code,
				fmt.Sprintf("detected: %d stop-high day(s), latest %s",
					result.Count, result.LatestDate.Format(market.DateFormat))))
			return false
		}()

		if aborted {
			setStage(StageAborted)
			break
		}

		// Throttle between instruments; skipped only after the very last one.
		if i != lastIdx {
			o.sleep(opts.Delay)
		}
	}

	if stage != StageAborted {
		setStage(StageCompleted)
	}

	report := &Report{
		TradeDate: tradeDate,
		Rows:      rows,
		Summary:   summary,
		Stage:     stage,
	}

	sink.Emit(resultEvent(ResultData{
		Success:   true,
		TradeDate: tradeDate.Format(market.DateFormat),
		Results:   rows,
		Summary:   summary,
	}))

	o.logger.WithFields(map[string]interface{}{
		"trade_date": tradeDate.Format(market.DateFormat),
		"processed":  summary.Processed,
		"detected":   summary.Detected,
		"failures":   summary.Failures,
		"stage":      string(stage),
	}).Info("Scan finished")

	return report, nil
}
