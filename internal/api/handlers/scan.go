package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/yshimizu/kabuscan/internal/market"
	"github.com/yshimizu/kabuscan/internal/scan"
	"github.com/yshimizu/kabuscan/pkg/config"
	"github.com/yshimizu/kabuscan/pkg/logger"
)

// ScanRunner runs one scan, pushing progress and the terminal record into
// the sink.
type ScanRunner interface {
	Run(ctx context.Context, opts scan.Options, sink scan.Sink) (*scan.Report, error)
}

// ScanHandler serves the scan stream over HTTP and WebSocket.
type ScanHandler struct {
	runner ScanRunner
	cfg    config.ScanConfig
	logger *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(runner ScanRunner, cfg config.ScanConfig, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		runner: runner,
		cfg:    cfg,
		logger: log,
	}
}

// Stream runs a scan and streams its events as newline-delimited JSON.
// GET /api/scan
//
// The response status is always 200: the stream itself carries the outcome,
// ending in either a result record or an error record.
func (h *ScanHandler) Stream(w http.ResponseWriter, r *http.Request) {
	opts := h.optionsFromQuery(r)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	sink := scan.NewStreamWriter(w)
	if _, err := h.runner.Run(r.Context(), opts, sink); err != nil {
		// The terminal error record is already on the stream.
		h.logger.WithError(err).Error("Scan failed")
	}
}

// optionsFromQuery builds scan options from the configured defaults, with a
// few per-request overrides: maxStocks caps the universe, threshold replaces
// the detection threshold, and date anchors the trading-day probe.
func (h *ScanHandler) optionsFromQuery(r *http.Request) scan.Options {
	opts := scan.FromConfig(h.cfg, time.Now())

	q := r.URL.Query()
	if v := q.Get("maxStocks"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.MaxStocks = n
		}
	}
	if v := q.Get("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			opts.Threshold = f
		}
	}
	if v := q.Get("date"); v != "" {
		if d, err := time.Parse(market.DateFormat, v); err == nil {
			opts.ReferenceTime = d
		}
	}
	return opts
}
