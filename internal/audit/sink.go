// Package audit records the scheduler's append-only event log.
//
// The orchestrator and handlers write through Sink. Records can be kept in a
// bounded in-memory buffer, mirrored to the structured log, or published to
// a NATS subject; Multi fans a single write out to several sinks.
package audit

import (
	"maps"
	"sync"
	"time"

	"github.com/Iron-Ham/fleetcore/internal/logging"
)

// Event names written by the scheduler.
const (
	TaskSubmitted      = "task.submitted"
	TaskComplete       = "task.complete"
	TaskError          = "task.error"
	ResearchPrediction = "research.prediction"
	ResearchError      = "research.error"
)

// Sink receives audit records. Implementations must be safe for concurrent
// use and must not block the caller for long.
type Sink interface {
	Log(event string, payload map[string]any)
}

// Record is a single audit entry.
type Record struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
	Time    time.Time      `json:"time"`
}

// MemorySink keeps the most recent records in a ring buffer.
type MemorySink struct {
	mu    sync.Mutex
	buf   []Record
	next  int
	full  bool
	now   func() time.Time
	total int
}

// DefaultBufferSize is the MemorySink capacity used when none is given.
const DefaultBufferSize = 1024

// NewMemorySink creates a MemorySink holding up to size records.
func NewMemorySink(size int) *MemorySink {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &MemorySink{buf: make([]Record, size), now: time.Now}
}

// Log appends a record, evicting the oldest when the buffer is full.
func (s *MemorySink) Log(event string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[s.next] = Record{Event: event, Payload: maps.Clone(payload), Time: s.now()}
	s.next = (s.next + 1) % len(s.buf)
	if s.next == 0 {
		s.full = true
	}
	s.total++
}

// Records returns the buffered records, oldest first.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		return append([]Record(nil), s.buf[:s.next]...)
	}
	out := make([]Record, 0, len(s.buf))
	out = append(out, s.buf[s.next:]...)
	return append(out, s.buf[:s.next]...)
}

// Count returns how many records with the given event name are buffered.
func (s *MemorySink) Count(event string) int {
	n := 0
	for _, r := range s.Records() {
		if r.Event == event {
			n++
		}
	}
	return n
}

// Total returns the number of records ever logged, including evicted ones.
func (s *MemorySink) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// LogSink mirrors audit records into the structured log.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a LogSink. A nil logger discards records.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &LogSink{logger: logger.WithComponent("audit")}
}

// Log writes the record at INFO, or WARN for error events.
func (s *LogSink) Log(event string, payload map[string]any) {
	args := make([]any, 0, 2+2*len(payload))
	args = append(args, "event", event)
	for k, v := range payload {
		args = append(args, k, v)
	}
	if event == TaskError || event == ResearchError {
		s.logger.Warn("audit", args...)
		return
	}
	s.logger.Info("audit", args...)
}

// Multi fans each record out to every sink in order.
type Multi []Sink

// Log forwards the record to each sink.
func (m Multi) Log(event string, payload map[string]any) {
	for _, s := range m {
		s.Log(event, payload)
	}
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Log(string, map[string]any) {}
