package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/oficvd/internal/equivalence"
	"github.com/sawpanic/oficvd/internal/feeder"
	"github.com/sawpanic/oficvd/internal/logx"
	"github.com/sawpanic/oficvd/internal/metrics"
	"github.com/sawpanic/oficvd/internal/signal"
)

func newEquivalenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "equivalence",
		Short: "Verify the Trade Simulator and the backtest Broker Adapter agree over the same tape",
		RunE:  runEquivalence,
	}
	cmd.Flags().StringSlice("symbols", nil, "symbols to check (required)")
	cmd.Flags().Int64("t-min-ms", 0, "inclusive start of the window, epoch ms")
	cmd.Flags().Int64("t-max-ms", 0, "inclusive end of the window, epoch ms")
	return cmd
}

func runEquivalence(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runID := feeder.ResolveRunID()
	log := logx.ForRun(logx.Init(cfg.Logging.Level), runID, "equivalence")

	symbols, _ := cmd.Flags().GetStringSlice("symbols")
	if len(symbols) == 0 {
		return wrapConfigError(fmt.Errorf("equivalence: --symbols is required"))
	}
	tMin, _ := cmd.Flags().GetInt64("t-min-ms")
	tMax, _ := cmd.Flags().GetInt64("t-max-ms")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	ctx := context.Background()

	r, rows, readErrc, mergeErrc := featureRowStream(ctx, cfg, dataDir, symbols, tMin, tMax)
	if r == nil {
		return <-readErrc
	}

	feederRows, ticks := tee(rows)

	core := signal.NewCore(cfg, runID)
	clock := feeder.NewSimClock()
	f := feeder.New(cfg, core, nil, clock, runID)
	signals, feedErrc := f.Run(ctx, feederRows)

	upstreamErrc := make(chan error, 1)
	go func() { upstreamErrc <- firstErr(readErrc, mergeErrc) }()

	var events []equivalence.Event
	for sig := range signals {
		tick := <-ticks
		s := sig
		events = append(events, equivalence.Event{Tick: tick, Signal: &s})
	}

	if err := <-feedErrc; err != nil {
		return err
	}
	if err := <-upstreamErrc; err != nil {
		return err
	}

	report, err := equivalence.Run(ctx, events, cfg.Backtest, cfg.Adapter, runID, signal.GatingMode(cfg.Executor.GatingMode), metrics.Default())
	if err != nil {
		return fmt.Errorf("equivalence: %w", err)
	}

	log.Info().
		Bool("equivalent", report.Equivalent).
		Int("trades_c7", report.TradeCountC7).
		Int("trades_c8", report.TradeCountC8).
		Float64("terminal_pnl_c7", report.TerminalPnLC7).
		Float64("terminal_pnl_c8", report.TerminalPnLC8).
		Interface("first_divergence", report.FirstDivergence).
		Msg("equivalence check complete")

	if !report.Equivalent {
		return fmt.Errorf("equivalence: backends diverged at %+v", report.FirstDivergence)
	}
	return nil
}
