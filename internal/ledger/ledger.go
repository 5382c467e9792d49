// Package ledger implements the append-only attendance log. Every event is
// one CSV line in a single canonical shape: RFC 3339 timestamp, student name,
// confidence. The format is machine-parseable on purpose; earlier free-text
// layouts needed fragile substring matching to read back.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"
	"time"
)

// DateLayout is the layout for date-scoped queries.
const DateLayout = "2006-01-02"

// Event is one recorded recognition.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
}

// Ledger appends and reads attendance events. Appends are serialized by a
// mutex so two records can never interleave bytes; events are immutable once
// written.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// New creates a ledger backed by the given file path.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Record appends one attendance event. A failed write must not block the
// recognition response, so errors are logged and swallowed; use Append when
// the caller needs to observe the failure.
func (l *Ledger) Record(name string, confidence float64, at time.Time) {
	if err := l.Append(name, confidence, at); err != nil {
		log.Printf("attendance write failed for %s: %v", name, err)
	}
}

// Append writes one event line and reports any failure. A zero timestamp is
// replaced with the current time.
func (l *Ledger) Append(name string, confidence float64, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening attendance log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{at.Format(time.RFC3339), name, strconv.FormatFloat(confidence, 'f', 3, 64)}); err != nil {
		return fmt.Errorf("writing attendance record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing attendance record: %w", err)
	}
	return nil
}

// Query reads events in the order they were written. When date is non-empty
// (YYYY-MM-DD) only events whose timestamp falls on that date are returned.
// Lines that do not parse as canonical records are skipped and counted, never
// silently misread. A missing log file yields no events and no error.
func (l *Ledger) Query(date string) ([]Event, int, error) {
	if date != "" {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return nil, 0, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
		}
	}

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening attendance log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var events []Event
	skipped := 0
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		event, ok := parseEvent(fields)
		if !ok {
			skipped++
			continue
		}
		if date != "" && event.Timestamp.Format(DateLayout) != date {
			continue
		}
		events = append(events, event)
	}

	return events, skipped, nil
}

// parseEvent converts one CSV record into an Event. The parser is total: any
// field that fails to parse marks the whole line as corrupt.
func parseEvent(fields []string) (Event, bool) {
	if len(fields) != 3 {
		return Event{}, false
	}
	ts, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return Event{}, false
	}
	if fields[1] == "" {
		return Event{}, false
	}
	confidence, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || confidence < 0 || confidence > 1 {
		return Event{}, false
	}
	return Event{Timestamp: ts, Name: fields[1], Confidence: confidence}, true
}

// MostRecent truncates events to the last n in written order. A non-positive
// n returns the input unchanged.
func MostRecent(events []Event, n int) []Event {
	if n <= 0 || len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

// UniqueAttendees derives the set of distinct names, ordered by first
// appearance.
func UniqueAttendees(events []Event) []string {
	seen := make(map[string]struct{}, len(events))
	var names []string
	for _, e := range events {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}
	return names
}
