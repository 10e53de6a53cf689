package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/feeder"
	"github.com/sawpanic/oficvd/internal/logx"
	"github.com/sawpanic/oficvd/internal/manifest"
	"github.com/sawpanic/oficvd/internal/pipeline"
	"github.com/sawpanic/oficvd/internal/reader"
	"github.com/sawpanic/oficvd/internal/signal"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the Signal Core from a live websocket feed until interrupted",
		RunE:  runLive,
	}
	cmd.Flags().String("ws-url", "", "live aligned-feed websocket URL (required)")
	return cmd
}

// runLive wires the live-mode data path: LiveReader (C1) at wall-clock
// pace, joined and normalized the same way a file-backed run is (C2/C3),
// fed through the Signal Core and Dual Sink (C4/C5). Live order execution
// (C7/C8 testnet/live variants) needs a concrete exchange Transport, which
// this command does not provide; it is wired separately by an operator
// that supplies one (spec section 4.8, Non-goal: no bundled exchange
// client).
func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runID := feeder.ResolveRunID()
	baseLog := logx.Init(cfg.Logging.Level)
	log := logx.ForRun(baseLog, runID, "run")

	wsURL, _ := cmd.Flags().GetString("ws-url")
	if wsURL == "" {
		return wrapConfigError(fmt.Errorf("run: --ws-url is required"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	startedAt := time.Now()

	startOperatorServer(ctx, cfg.Metrics, cfg.Executor.OutputDir, log)

	lr := reader.NewLiveReader(wsURL, baseLog)
	rawRows := make(chan reader.RawRow, 256)
	streamErrc := make(chan error, 1)
	go func() { streamErrc <- lr.Stream(ctx, rawRows) }()

	aligner := feature.NewAligner(feature.AlignerConfig{Regime: feature.RegimeConfig{
		ActiveSpreadThresholdBps: cfg.Signal.SpreadMaxBps / 5,
		HighVolThresholdBps:      cfg.Backtest.TakeProfitBps / 4,
	}})
	rows, mergeErrc := pipeline.Merge(ctx, rawRows, aligner, cfg.Backtest.RolloverTimezone, cfg.Backtest.RolloverHour)

	ds, closeSink, err := buildSink(cfg.Sink)
	if err != nil {
		return err
	}
	defer closeSink()

	core := signal.NewCore(cfg, runID)
	f := feeder.New(cfg, core, ds, feeder.WallClock{}, runID)
	signals, feedErrc := f.Run(ctx, rows)

	var confirmed int
	for sig := range signals {
		if sig.Confirm {
			confirmed++
			log.Info().Str("symbol", sig.Symbol).Str("side", string(sig.SideHint)).Msg("signal confirmed")
		}
	}

	var finalErr error
	select {
	case err := <-feedErrc:
		if err != nil && ctx.Err() == nil {
			finalErr = err
		}
	default:
	}

	stats := f.Stats.Snapshot()
	m := &manifest.RunManifest{
		RunID:           runID,
		StartedAt:       startedAt.Format(time.RFC3339),
		FinishedAt:      time.Now().Format(time.RFC3339),
		Config:          cfg,
		EffectiveParams: feeder.EffectiveParams(cfg),
		FeederStats:     stats,
		Metrics:         map[string]float64{"signals_confirmed": float64(confirmed)},
		SinkHealth:      manifest.SinkHealth{JSONLHealthy: true, RelationalHealthy: cfg.Sink.Kind != "jsonl"},
		ExitStatus:      exitOK,
	}
	if err := manifest.Write(cfg.Executor.OutputDir, m); err != nil {
		return fmt.Errorf("write run manifest: %w", err)
	}

	if finalErr != nil {
		return finalErr
	}
	if err := <-streamErrc; err != nil && ctx.Err() == nil {
		return fmt.Errorf("run: live stream: %w", err)
	}
	if err := <-mergeErrc; err != nil && ctx.Err() == nil {
		return fmt.Errorf("run: merge: %w", err)
	}
	return nil
}
