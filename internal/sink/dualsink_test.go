package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/oficvd/internal/config"
)

func TestDualSinkJSONLOnlyWritesSuccessfully(t *testing.T) {
	dir := t.TempDir()
	cfg := config.SinkConfig{
		Kind:           "jsonl",
		OutputDir:      dir,
		DeadletterDir:  "deadletter/signals",
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}
	ds := NewDualSink(cfg, nil, func() int64 { return 1_700_000_000_000 })
	defer ds.Close()

	err := ds.Write(context.Background(), mkSignal("BTCUSDT", 1_700_000_000_000, 1, 2.0))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "deadletter", "signals"))
	if err == nil {
		assert.Len(t, entries, 0)
	}
}

func TestDualSinkRoutesToDeadletterOnJSONLFailure(t *testing.T) {
	dir := t.TempDir()
	// Pre-create ready/signal (the symbol directory's parent) as a file, not
	// a directory, so JSONLWriter.open's MkdirAll fails deterministically on
	// every retry.
	symbolPath := filepath.Join(dir, "ready", "signal")
	require.NoError(t, os.MkdirAll(filepath.Dir(symbolPath), 0o755))
	require.NoError(t, os.WriteFile(symbolPath, []byte("not a directory"), 0o644))

	cfg := config.SinkConfig{
		Kind:           "jsonl",
		OutputDir:      dir,
		DeadletterDir:  "deadletter/signals",
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	}
	ds := NewDualSink(cfg, nil, func() int64 { return 1_700_000_000_000 })
	defer ds.Close()

	err := ds.Write(context.Background(), mkSignal("BTCUSDT", 1_700_000_000_000, 1, 2.0))
	require.NoError(t, err) // deadletter write itself succeeds, stream continues

	entries, err := os.ReadDir(filepath.Join(dir, "deadletter", "signals"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
