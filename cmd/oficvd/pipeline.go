package main

import (
	"context"
	"fmt"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/pipeline"
	"github.com/sawpanic/oficvd/internal/reader"
)

// allKinds is the full set of raw row kinds the pipeline joins into one
// FeatureRow per (symbol, second).
var allKinds = []reader.Kind{
	reader.KindPrices, reader.KindOrderbook, reader.KindOFI, reader.KindCVD, reader.KindFusion,
}

// dedupeStoreFor builds the Reader's dedupe backend from cfg.Reader,
// matching the memory|redis switch spec section 4.1 defines.
func dedupeStoreFor(cfg config.ReaderConfig) (reader.DedupeStore, error) {
	switch cfg.DedupeBackend {
	case "redis":
		return reader.NewRedisDedupe(cfg.RedisAddr, cfg.RetentionHours), nil
	default:
		return reader.NewLRUDedupe(cfg.RetentionHours, 1_000_000), nil
	}
}

// featureRowStream reads every partitioned row for symbols in [tMinMs,
// tMaxMs] under dataDir and joins them into a FeatureRow stream (C1→C2→C3).
func featureRowStream(ctx context.Context, cfg *config.Config, dataDir string, symbols []string, tMinMs, tMaxMs int64) (*reader.Reader, <-chan feature.FeatureRow, <-chan error, <-chan error) {
	dedupe, err := dedupeStoreFor(cfg.Reader)
	if err != nil {
		errc := make(chan error, 1)
		errc <- err
		close(errc)
		return nil, nil, errc, nil
	}

	r := reader.NewReader(dataDir, dedupe)
	rawRows, readErrc := r.Iterate(ctx, symbols, tMinMs, tMaxMs, allKinds, nil, cfg.Reader.IncludePreview)

	aligner := feature.NewAligner(feature.AlignerConfig{Regime: feature.RegimeConfig{
		ActiveSpreadThresholdBps: cfg.Signal.SpreadMaxBps / 5,
		HighVolThresholdBps:      cfg.Backtest.TakeProfitBps / 4,
	}})
	rows, mergeErrc := pipeline.Merge(ctx, rawRows, aligner, cfg.Backtest.RolloverTimezone, cfg.Backtest.RolloverHour)

	return r, rows, readErrc, mergeErrc
}

// firstErr drains whichever of the two upstream error channels reports
// first, returning nil once both close cleanly.
func firstErr(a, b <-chan error) error {
	var errs []error
	for a != nil || b != nil {
		select {
		case e, ok := <-a:
			if !ok {
				a = nil
				continue
			}
			if e != nil {
				errs = append(errs, e)
			}
		case e, ok := <-b:
			if !ok {
				b = nil
				continue
			}
			if e != nil {
				errs = append(errs, e)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pipeline: %w", errs[0])
	}
	return nil
}
