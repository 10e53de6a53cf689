// Package manifest defines run_manifest.json (spec section 6): the
// single machine-readable summary written once at the end of a run,
// following smoke90/writer.go's WriteSummaryJSON single-file idiom
// generalized from one backtest window to a whole pipeline run.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TradeStats summarizes the Trade Simulator's output for the manifest.
type TradeStats struct {
	TradesClosed  int     `json:"trades_closed"`
	GrossPnL      float64 `json:"gross_pnl"`
	NetPnL        float64 `json:"net_pnl"`
	TotalFees     float64 `json:"total_fees"`
	TotalSlippage float64 `json:"total_slippage"`
}

// SinkHealth summarizes the Dual Sink's end-of-run state.
type SinkHealth struct {
	JSONLHealthy     bool `json:"jsonl_healthy"`
	RelationalHealthy bool `json:"relational_healthy"`
	DeadletterCount  int  `json:"deadletter_count"`
}

// DataSourceInfo records where this run's input came from.
type DataSourceInfo struct {
	BaseDir        string `json:"base_dir"`
	DedupeBackend  string `json:"dedupe_backend"`
	RetentionHours int    `json:"retention_hours"`
}

// RunManifest is the full run_manifest.json document (spec section 6).
// reader_stats/aligner_stats/feeder_stats carry whatever concrete stats
// type each upstream component produces (*reader.Stats, a caller-built
// aligner summary, *feeder.Stats) — kept as interface{} here so this
// package never imports the upstream packages (manifest sits above
// everything else in the dependency order, nothing upstream imports it
// back).
type RunManifest struct {
	RunID           string                 `json:"run_id"`
	StartedAt       string                 `json:"started_at"`
	FinishedAt      string                 `json:"finished_at"`
	GitCommit       string                 `json:"git_commit"`
	DataFingerprint string                 `json:"data_fingerprint"`
	Config          interface{}            `json:"config"`
	EffectiveParams map[string]interface{} `json:"effective_params"`
	ReaderStats     interface{}            `json:"reader_stats"`
	AlignerStats    interface{}            `json:"aligner_stats"`
	FeederStats     interface{}            `json:"feeder_stats"`
	TradeStats      TradeStats             `json:"trade_stats"`
	Metrics         map[string]float64     `json:"metrics"`
	SinkHealth      SinkHealth             `json:"sink_health"`
	DataSourceInfo  DataSourceInfo         `json:"data_source_info"`
	ExitStatus      int                    `json:"exit_status"`
	FatalErrors     []string               `json:"fatal_errors,omitempty"`
}

// Write marshals m as indented JSON to <dir>/run_manifest.json, creating
// dir if needed.
func Write(dir string, m *RunManifest) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("manifest: create output dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "run_manifest.json")
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}
