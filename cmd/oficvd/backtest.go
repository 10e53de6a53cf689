package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/oficvd/internal/executor"
	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/feeder"
	"github.com/sawpanic/oficvd/internal/logx"
	"github.com/sawpanic/oficvd/internal/manifest"
	"github.com/sawpanic/oficvd/internal/signal"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Drive the Signal Core and Trade Simulator over recorded rows at sim-clock pace",
		RunE:  runBacktest,
	}
	cmd.Flags().StringSlice("symbols", nil, "symbols to backtest (required)")
	cmd.Flags().Int64("t-min-ms", 0, "inclusive start of the backtest window, epoch ms")
	cmd.Flags().Int64("t-max-ms", 0, "inclusive end of the backtest window, epoch ms")
	return cmd
}

// tee forwards each FeatureRow to both a Tick channel (for the Trade
// Simulator) and a pass-through FeatureRow channel (for the feeder), in
// lockstep, so the Signal emitted for row i and its Tick always pair up
// by receive order. If the feeder stops consuming early (a fatal sink
// error), this goroutine blocks on its next send and leaks for the
// remainder of the process — acceptable since the command is about to
// return and exit.
func tee(rows <-chan feature.FeatureRow) (<-chan feature.FeatureRow, <-chan executor.Tick) {
	passthrough := make(chan feature.FeatureRow, 256)
	ticks := make(chan executor.Tick, 256)
	go func() {
		defer close(passthrough)
		defer close(ticks)
		for row := range rows {
			ticks <- executor.TickFromFeatureRow(row)
			passthrough <- row
		}
	}()
	return passthrough, ticks
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runID := feeder.ResolveRunID()
	log := logx.ForRun(logx.Init(cfg.Logging.Level), runID, "backtest")

	symbols, _ := cmd.Flags().GetStringSlice("symbols")
	if len(symbols) == 0 {
		return wrapConfigError(fmt.Errorf("backtest: --symbols is required"))
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

	feederRows, ticks := tee(rows)

	core := signal.NewCore(cfg, runID)
	clock := feeder.NewSimClock()
	f := feeder.New(cfg, core, ds, clock, runID)
	signals, feedErrc := f.Run(ctx, feederRows)

	sim := executor.NewSimulator(cfg.Backtest, signal.GatingMode(cfg.Executor.GatingMode), runID)
	logWriters := make(map[string]*executor.JSONLWriter)
	defer func() {
		for _, w := range logWriters {
			w.Close()
		}
	}()

	upstreamErrc := make(chan error, 1)
	go func() { upstreamErrc <- firstErr(readErrc, mergeErrc) }()

	var trades manifest.TradeStats
	for sig := range signals {
		tick := <-ticks
		s := sig
		trade, err := sim.Process(tick, &s)
		if err != nil {
			return fmt.Errorf("backtest: simulate %s@%d: %w", tick.Symbol, tick.TsMs, err)
		}
		if trade == nil {
			continue
		}
		w, ok := logWriters[trade.Symbol]
		if !ok {
			w, err = executor.NewJSONLWriter(cfg.Executor.OutputDir, fmt.Sprintf("exec_log_%s.jsonl", trade.Symbol))
			if err != nil {
				return fmt.Errorf("backtest: open exec log for %s: %w", trade.Symbol, err)
			}
			logWriters[trade.Symbol] = w
		}
		if err := w.Write(trade); err != nil {
			return fmt.Errorf("backtest: write exec log for %s: %w", trade.Symbol, err)
		}

		trades.TradesClosed++
		trades.GrossPnL += trade.GrossPnL
		trades.NetPnL += trade.NetPnL
		trades.TotalFees += trade.EntryFee + trade.ExitFee
		trades.TotalSlippage += trade.SlippageCost
	}

	if err := <-feedErrc; err != nil {
		return err
	}
	if err := <-upstreamErrc; err != nil {
		return err
	}

	stats := f.Stats.Snapshot()
	log.Info().Int("rows_fed", stats.RowsFed).Int("trades_closed", trades.TradesClosed).Float64("net_pnl", trades.NetPnL).Msg("backtest complete")

	m := &manifest.RunManifest{
		RunID:           runID,
		StartedAt:       startedAt.Format(time.RFC3339),
		FinishedAt:      time.Now().Format(time.RFC3339),
		Config:          cfg,
		EffectiveParams: feeder.EffectiveParams(cfg),
		ReaderStats:     r.Stats,
		FeederStats:     stats,
		TradeStats:      trades,
		SinkHealth:      manifest.SinkHealth{JSONLHealthy: true, RelationalHealthy: cfg.Sink.Kind != "jsonl"},
		ExitStatus:      exitOK,
	}
	if err := manifest.Write(cfg.Executor.OutputDir, m); err != nil {
		return fmt.Errorf("write run manifest: %w", err)
	}
	return nil
}
