package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/oficvd/internal/feeder"
	"github.com/sawpanic/oficvd/internal/logx"
	"github.com/sawpanic/oficvd/internal/manifest"
	"github.com/sawpanic/oficvd/internal/signal"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded rows through the Signal Core and Dual Sink at sim-clock pace",
		RunE:  runReplay,
	}
	cmd.Flags().StringSlice("symbols", nil, "symbols to replay (required)")
	cmd.Flags().Int64("t-min-ms", 0, "inclusive start of the replay window, epoch ms")
	cmd.Flags().Int64("t-max-ms", 0, "inclusive end of the replay window, epoch ms")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runID := feeder.ResolveRunID()
	log := logx.ForRun(logx.Init(cfg.Logging.Level), runID, "replay")

	symbols, _ := cmd.Flags().GetStringSlice("symbols")
	if len(symbols) == 0 {
		return wrapConfigError(fmt.Errorf("replay: --symbols is required"))
	}
	tMin, _ := cmd.Flags().GetInt64("t-min-ms")
	tMax, _ := cmd.Flags().GetInt64("t-max-ms")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	ctx := context.Background()
	startedAt := time.Now()

	r, rows, readErrc, mergeErrc := featureRowStream(ctx, cfg, dataDir, symbols, tMin, tMax)
	if r == nil {
		return <-readErrc
	}

	ds, closeSink, err := buildSink(cfg.Sink)
	if err != nil {
		return err
	}
	defer closeSink()

	core := signal.NewCore(cfg, runID)
	clock := feeder.NewSimClock()
	f := feeder.New(cfg, core, ds, clock, runID)

	signals, feedErrc := f.Run(ctx, rows)

	upstreamErrc := make(chan error, 1)
	go func() { upstreamErrc <- firstErr(readErrc, mergeErrc) }()

	var confirmed int
	for sig := range signals {
		if sig.Confirm {
			confirmed++
		}
	}

	if err := <-feedErrc; err != nil {
		return err
	}
	if err := <-upstreamErrc; err != nil {
		return err
	}

	stats := f.Stats.Snapshot()
	log.Info().Int("rows_fed", stats.RowsFed).Int("confirmed", confirmed).Msg("replay complete")

	m := &manifest.RunManifest{
		RunID:           runID,
		StartedAt:       startedAt.Format(time.RFC3339),
		FinishedAt:      time.Now().Format(time.RFC3339),
		Config:          cfg,
		EffectiveParams: feeder.EffectiveParams(cfg),
		ReaderStats:     r.Stats,
		FeederStats:     stats,
		Metrics:         map[string]float64{"signals_confirmed": float64(confirmed)},
		SinkHealth:      manifest.SinkHealth{JSONLHealthy: true, RelationalHealthy: cfg.Sink.Kind != "jsonl"},
		ExitStatus:      exitOK,
	}
	if err := manifest.Write(cfg.Executor.OutputDir, m); err != nil {
		return fmt.Errorf("write run manifest: %w", err)
	}
	return nil
}
