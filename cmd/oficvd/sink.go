package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/sink"
)

// buildSink wires the Dual Sink (C5) per cfg.Sink.Kind: jsonl-only skips
// opening a Postgres pool entirely, dual/sqlite attach a RelationalSink
// and ensure its schema once up front.
func buildSink(cfg config.SinkConfig) (*sink.DualSink, func() error, error) {
	var relational *sink.RelationalSink
	closeFn := func() error { return nil }

	if cfg.Kind != "jsonl" {
		rel, err := sink.NewRelationalSink(cfg.DSN, cfg.CommitTimeout, cfg.BusyTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("sink: open relational: %w", err)
		}
		if err := rel.EnsureSchema(context.Background()); err != nil {
			return nil, nil, fmt.Errorf("sink: ensure schema: %w", err)
		}
		relational = rel
		closeFn = rel.Close
	}

	ds := sink.NewDualSink(cfg, relational, func() int64 { return time.Now().UnixMilli() })
	return ds, closeFn, nil
}
