// Package scan orchestrates a stop-high scan end to end: directory fetch,
// universe filtering, trading-day resolution, per-instrument detection, and
// the line-delimited progress/result protocol the caller consumes.
package scan

import "github.com/yshimizu/kabuscan/internal/market"

// Event types on the progress/result stream.
const (
	EventLog    = "log"
	EventError  = "error"
	EventResult = "result"
)

// Event is one record of the progress/result stream. A stream is a sequence
// of log/error events terminated by exactly one result event.
type Event struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    *ResultData `json:"data,omitempty"`
}

// ResultData is the payload of the terminal result event.
type ResultData struct {
	Success   bool                   `json:"success"`
	TradeDate string                 `json:"tradeDate"`
	Results   []market.ScanResultRow `json:"results"`
	Summary   Summary                `json:"summary"`
}

// Summary counts what the scan actually did.
type Summary struct {
	Processed int `json:"processed"`
	Detected  int `json:"detected"`
	Failures  int `json:"failures"`
}

// Sink receives scan events in emission order. Implementations must not
// block indefinitely; the scan loop is sequential and every event passes
// through here.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

func logEvent(msg string) Event {
	return Event{Type: EventLog, Message: msg}
}

func codeLogEvent(code, msg string) Event {
	return Event{Type: EventLog, Code: code, Message: msg}
}

func errorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg}
}

func codeErrorEvent(code, msg string) Event {
	return Event{Type: EventError, Code: code, Message: msg}
}

func resultEvent(data ResultData) Event {
	return Event{Type: EventResult, Data: &data}
}
