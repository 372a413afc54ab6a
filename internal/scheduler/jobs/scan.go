// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/yshimizu/kabuscan/internal/scan"
	"github.com/yshimizu/kabuscan/pkg/config"
	"github.com/yshimizu/kabuscan/pkg/logger"
)

// DefaultScanSchedule runs the scan on weekdays after the session close.
const DefaultScanSchedule = "0 30 18 * * 1-5"

// ScanRunner runs one scan, pushing progress and the terminal record into
// the sink.
type ScanRunner interface {
	Run(ctx context.Context, opts scan.Options, sink scan.Sink) (*scan.Report, error)
}

// DailyScanJob runs the stop-high scan on a cron schedule, routing the
// event stream into the structured log instead of a client connection.
type DailyScanJob struct {
	runner   ScanRunner
	cfg      config.ScanConfig
	schedule string
	logger   *logger.Logger
}

// NewDailyScanJob creates the daily scan job. An empty schedule falls back
// to DefaultScanSchedule.
func NewDailyScanJob(runner ScanRunner, cfg config.ScanConfig, schedule string, log *logger.Logger) *DailyScanJob {
	if schedule == "" {
		schedule = DefaultScanSchedule
	}
	return &DailyScanJob{
		runner:   runner,
		cfg:      cfg,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *DailyScanJob) Name() string { return "daily_scan" }

// Schedule returns the cron schedule expression
func (j *DailyScanJob) Schedule() string { return j.schedule }

// Run executes one scan anchored at the current time.
func (j *DailyScanJob) Run(ctx context.Context) error {
	opts := scan.FromConfig(j.cfg, time.Now())

	sink := scan.SinkFunc(func(e scan.Event) {
		entry := j.logger.WithField("code", e.Code)
		switch e.Type {
		case scan.EventError:
			entry.Warn(e.Message)
		case scan.EventResult:
			if e.Data != nil {
				j.logger.WithFields(map[string]interface{}{
					"trade_date": e.Data.TradeDate,
					"processed":  e.Data.Summary.Processed,
					"detected":   e.Data.Summary.Detected,
					"failures":   e.Data.Summary.Failures,
				}).Info("Scan result")
			}
		default:
			entry.Debug(e.Message)
		}
	})

	report, err := j.runner.Run(ctx, opts, sink)
	if err != nil {
		return fmt.Errorf("daily scan failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"detected": report.Summary.Detected,
		"stage":    string(report.Stage),
	}).Info("Daily scan finished")

	return nil
}
