package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sawpanic/oficvd/internal/metrics"
	"github.com/sawpanic/oficvd/internal/signal"
)

// DeadletterEntry is one line in a deadletter NDJSON log: the signal that
// could not be persisted, which sink rejected it, and why.
type DeadletterEntry struct {
	Sink      string          `json:"sink"`
	Reason    string          `json:"reason"`
	Signal    signal.Signal   `json:"signal"`
	Attempts  int             `json:"attempts"`
	RoutedAt  int64           `json:"routed_at_ms"`
	RawExtras json.RawMessage `json:"extras,omitempty"`
}

// DeadletterWriter appends entries to <output_dir>/deadletter/signals/*.ndjson.
// Grounded on the JSONL append discipline in jsonl.go, simplified to a
// single rotating-by-day file since deadletter volume is expected to be low.
type DeadletterWriter struct {
	dir string

	mu      sync.Mutex
	day     string
	file    *os.File
}

// NewDeadletterWriter constructs a writer rooted at filepath.Join(outputDir, relDir).
func NewDeadletterWriter(outputDir, relDir string) *DeadletterWriter {
	return &DeadletterWriter{dir: filepath.Join(outputDir, relDir)}
}

// Write appends entry as one NDJSON line and increments the deadletter
// counter for entry.Sink.
func (d *DeadletterWriter) Write(entry DeadletterEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := time.UnixMilli(entry.RoutedAt).UTC().Format("20060102")
	if d.file == nil || d.day != day {
		if d.file != nil {
			d.file.Close()
		}
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return fmt.Errorf("deadletter: mkdir: %w", err)
		}
		path := filepath.Join(d.dir, fmt.Sprintf("deadletter-%s.ndjson", day))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("deadletter: open: %w", err)
		}
		d.file = f
		d.day = day
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("deadletter: marshal: %w", err)
	}
	line = append(line, '\n')
	if _, err := d.file.Write(line); err != nil {
		return fmt.Errorf("deadletter: write: %w", err)
	}
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("deadletter: sync: %w", err)
	}

	metrics.Default().SinkDeadletterTotal.WithLabelValues(entry.Sink).Inc()
	return nil
}

// Close releases the currently open file handle, if any.
func (d *DeadletterWriter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// retryWithBackoff retries fn up to maxRetries times with bounded
// exponential backoff (base * 2^attempt, capped at 10x base), honoring
// ctx cancellation between attempts. Returns the last error on exhaustion.
func retryWithBackoff(ctx context.Context, maxRetries int, base time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Min(float64(base)*math.Pow(2, float64(attempt-1)), float64(base)*10))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
