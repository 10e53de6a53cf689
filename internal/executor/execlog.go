package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLWriter appends one marshaled JSON value per line to a single open
// file, following smoke90/writer.go's per-line-marshal-then-append idiom.
// It is used both for exec_log_<symbol>.jsonl (closed Trades) and
// adapter_event-<symbol>.jsonl (submit/ack/fill/reject events).
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLWriter opens (creating parent directories and appending to any
// existing file) the JSONL file at dir/name.
func NewJSONLWriter(dir, name string) (*JSONLWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("executor: create output dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("executor: open %s: %w", path, err)
	}
	return &JSONLWriter{file: f}, nil
}

// Write marshals v and appends it as one newline-terminated JSON line.
func (w *JSONLWriter) Write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("executor: marshal record: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("executor: write record: %w", err)
	}
	if _, err := w.file.WriteString("\n"); err != nil {
		return fmt.Errorf("executor: write newline: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// execLogName returns the conventional exec_log filename for one symbol.
func execLogName(symbol string) string {
	return fmt.Sprintf("exec_log_%s.jsonl", symbol)
}

// adapterEventName returns the conventional adapter_event filename for one
// symbol (spec section 4.8).
func adapterEventName(symbol string) string {
	return fmt.Sprintf("adapter_event-%s.jsonl", symbol)
}

// AdapterEvent is one submit/ack/fill/reject record in the adapter event
// stream (spec section 4.8, testnet/live variant).
type AdapterEvent struct {
	Kind          string `json:"kind"` // submit | ack | fill | reject
	TsMs          int64  `json:"ts_ms"`
	Symbol        string `json:"symbol"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	DryRun        bool   `json:"dry_run"`
}
