package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yshimizu/kabuscan/internal/scan"
	"github.com/yshimizu/kabuscan/pkg/config"
	"github.com/yshimizu/kabuscan/pkg/logger"
)

type fakeRunner struct {
	opts   scan.Options
	events []scan.Event
	err    error
}

func (f *fakeRunner) Run(_ context.Context, opts scan.Options, sink scan.Sink) (*scan.Report, error) {
	f.opts = opts
	for _, e := range f.events {
		sink.Emit(e)
	}
	return nil, f.err
}

func terminalResult() scan.Event {
	return scan.Event{Type: scan.EventResult, Data: &scan.ResultData{
		Success:   true,
		TradeDate: "2024-01-05",
		Results:   nil,
		Summary:   scan.Summary{Processed: 1},
	}}
}

func newHandler(runner ScanRunner) *ScanHandler {
	cfg := config.ScanConfig{
		MinPrice:      100,
		MaxPrice:      600,
		Threshold:     0.13,
		FailureBudget: 10,
	}
	return NewScanHandler(runner, cfg, logger.NewWithWriter(io.Discard))
}

func TestStreamEmitsNDJSON(t *testing.T) {
	runner := &fakeRunner{events: []scan.Event{
		{Type: scan.EventLog, Message: "scanning 1 instruments"},
		terminalResult(),
	}}
	h := newHandler(runner)

	rec := httptest.NewRecorder()
	h.Stream(rec, httptest.NewRequest("GET", "/api/scan", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	events, err := scan.CollectEvents(rec.Body)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, scan.EventLog, events[0].Type)
	assert.Equal(t, scan.EventResult, events[1].Type)
	assert.True(t, events[1].Data.Success)
}

func TestStreamQueryOverrides(t *testing.T) {
	runner := &fakeRunner{events: []scan.Event{terminalResult()}}
	h := newHandler(runner)

	rec := httptest.NewRecorder()
	h.Stream(rec, httptest.NewRequest("GET",
		"/api/scan?maxStocks=25&threshold=0.2&date=2024-01-08", nil))

	assert.Equal(t, 25, runner.opts.MaxStocks)
	assert.Equal(t, 0.2, runner.opts.Threshold)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), runner.opts.ReferenceTime)
}

func TestStreamIgnoresBadOverrides(t *testing.T) {
	runner := &fakeRunner{events: []scan.Event{terminalResult()}}
	h := newHandler(runner)

	rec := httptest.NewRecorder()
	h.Stream(rec, httptest.NewRequest("GET",
		"/api/scan?maxStocks=-3&threshold=abc&date=bogus", nil))

	assert.Equal(t, 0, runner.opts.MaxStocks)
	assert.Equal(t, 0.13, runner.opts.Threshold)
}

func TestStreamWS(t *testing.T) {
	runner := &fakeRunner{events: []scan.Event{
		{Type: scan.EventLog, Message: "resolving latest trading day"},
		terminalResult(),
	}}
	h := newHandler(runner)

	srv := httptest.NewServer(http.HandlerFunc(h.StreamWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var first scan.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, scan.EventLog, first.Type)

	var last scan.Event
	require.NoError(t, conn.ReadJSON(&last))
	assert.Equal(t, scan.EventResult, last.Type)
	require.NotNil(t, last.Data)
	assert.Equal(t, "2024-01-05", last.Data.TradeDate)
}
