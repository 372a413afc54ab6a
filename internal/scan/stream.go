package scan

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// StreamWriter encodes events as newline-delimited JSON. Records are
// length-unprefixed; consumers are expected to split on newlines. The writer
// flushes after every record so a live consumer sees each event as the
// corresponding work completes.
type StreamWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher interface{ Flush() }
}

// NewStreamWriter creates a stream writer. If w also implements a Flush
// method (http.Flusher, bufio.Writer), it is invoked after each record.
func NewStreamWriter(w io.Writer) *StreamWriter {
	sw := &StreamWriter{w: w}
	if f, ok := w.(interface{ Flush() }); ok {
		sw.flusher = f
	}
	return sw
}

// Emit writes one event as a single JSON line. Encoding failures are
// swallowed: the stream contract is that a malformed or missing line never
// takes down the producer, mirroring the tolerance required of consumers.
func (s *StreamWriter) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	data = append(data, '\n')
	if _, err := s.w.Write(data); err != nil {
		return
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// ReadEvents consumes a progress/result stream, invoking handle for each
// well-formed record in order. Malformed lines are skipped rather than
// aborting the stream; blank lines are ignored. It returns the reader error,
// if any, once the stream ends.
func ReadEvents(r io.Reader, handle func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if e.Type == "" {
			continue
		}
		handle(e)
	}
	return scanner.Err()
}

// CollectEvents reads an entire stream into memory. Intended for tests and
// small command-line consumers.
func CollectEvents(r io.Reader) ([]Event, error) {
	var events []Event
	err := ReadEvents(r, func(e Event) {
		events = append(events, e)
	})
	return events, err
}
