package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_ProducesValidJSONAtConventionalPath(t *testing.T) {
	dir := t.TempDir()
	m := &RunManifest{
		RunID:      "run-1",
		StartedAt:  "2026-07-30T00:00:00Z",
		FinishedAt: "2026-07-30T00:05:00Z",
		TradeStats: TradeStats{TradesClosed: 3, NetPnL: 12.5},
		SinkHealth: SinkHealth{JSONLHealthy: true, RelationalHealthy: true},
		ExitStatus: 0,
	}

	require.NoError(t, Write(dir, m))

	data, err := os.ReadFile(filepath.Join(dir, "run_manifest.json"))
	require.NoError(t, err)

	var roundTripped RunManifest
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	assert.Equal(t, "run-1", roundTripped.RunID)
	assert.Equal(t, 3, roundTripped.TradeStats.TradesClosed)
}

func TestWrite_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "run_output")
	require.NoError(t, Write(dir, &RunManifest{RunID: "run-2"}))
	_, err := os.Stat(filepath.Join(dir, "run_manifest.json"))
	require.NoError(t, err)
}
