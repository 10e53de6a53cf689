// Package equivalence implements the Equivalence Harness (C9): given the
// same (run_id, signal tape, mid-price stream, seed, config) it drives the
// Trade Simulator's internal accounting path (C7) and the Broker
// Adapter's backtest path (C8, dry-run equivalent) over the identical
// events and asserts they agree, per spec section 4.9.
package equivalence

import (
	"context"
	"fmt"
	"math"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/executor"
	"github.com/sawpanic/oficvd/internal/metrics"
	"github.com/sawpanic/oficvd/internal/signal"
)

const epsilon = 1e-8

// Event pairs one mid-price tick with the (possibly nil) Signal emitted
// for the same (symbol, ts_ms).
type Event struct {
	Tick   executor.Tick
	Signal *signal.Signal
}

// Divergence names the first point at which C7 and C8 disagreed.
type Divergence struct {
	Symbol   string
	TsMs     int64
	Field    string
	Expected interface{}
	Actual   interface{}
}

// Report is the harness's verdict for one run.
type Report struct {
	Equivalent        bool
	TradeCountC7      int
	TradeCountC8      int
	AggregateFeeBpsC7 float64
	AggregateFeeBpsC8 float64
	TerminalPnLC7     float64
	TerminalPnLC8     float64
	FirstDivergence   *Divergence
	ContractViolation bool
}

// Run drives events through both execution backends and compares results.
// Events that share a (symbol, ts_ms) key are reduced to one before either
// backend sees them. dedupeTop1 keeps the event whose signal has the
// largest |score|, and a tie goes to the smaller seq, so both paths act
// on the same Top-1 signal.
func Run(ctx context.Context, events []Event, cfg config.BacktestConfig, adapterCfg config.AdapterConfig, runID string, gatingMode signal.GatingMode, reg *metrics.Registry) (*Report, error) {
	deduped := dedupeTop1(events)

	for _, ev := range deduped {
		if ev.Signal != nil && !ev.Signal.SatisfiesContract() {
			return nil, fmt.Errorf("equivalence: signal %s@%d violates the confirm/gating/decision_code contract", ev.Signal.Symbol, ev.Signal.TsMs)
		}
	}

	sim := executor.NewSimulator(cfg, gatingMode, runID)
	adapter := executor.NewBacktestAdapter(cfg, adapterCfg, reg)
	adapterSim := executor.NewAdapterSimulator(adapter, cfg, gatingMode, runID)

	var tradesC7, tradesC8 []*executor.Trade

	for _, ev := range deduped {
		t7, err := sim.Process(ev.Tick, ev.Signal)
		if err != nil {
			return nil, fmt.Errorf("equivalence: C7 process %s@%d: %w", ev.Tick.Symbol, ev.Tick.TsMs, err)
		}
		if t7 != nil {
			tradesC7 = append(tradesC7, t7)
		}

		t8, err := adapterSim.Process(ctx, ev.Tick, ev.Signal)
		if err != nil {
			return nil, fmt.Errorf("equivalence: C8 process %s@%d: %w", ev.Tick.Symbol, ev.Tick.TsMs, err)
		}
		if t8 != nil {
			tradesC8 = append(tradesC8, t8)
		}
	}

	report := &Report{TradeCountC7: len(tradesC7), TradeCountC8: len(tradesC8)}

	if len(tradesC7) != len(tradesC8) {
		report.FirstDivergence = &Divergence{Field: "trade_count", Expected: len(tradesC7), Actual: len(tradesC8)}
		recordDivergence(reg, "trade_count")
		return report, nil
	}

	var notionalC7, feeC7, notionalC8, feeC8 float64
	for i := range tradesC7 {
		a, b := tradesC7[i], tradesC8[i]
		if div := compareFill(a, b); div != nil {
			report.FirstDivergence = div
			recordDivergence(reg, div.Field)
			break
		}
		report.TerminalPnLC7 += a.NetPnL
		report.TerminalPnLC8 += b.NetPnL
		notionalC7 += a.Qty * a.EntryPrice
		notionalC8 += b.Qty * b.EntryPrice
		// C8 fills carry fee and slippage together in FeeBps, so C7's
		// slippage cost is counted with its fees to compare like with like.
		feeC7 += a.EntryFee + a.ExitFee + a.SlippageCost
		feeC8 += b.EntryFee + b.ExitFee
	}

	if notionalC7 > 0 {
		report.AggregateFeeBpsC7 = feeC7 / notionalC7 * 10000
	}
	if notionalC8 > 0 {
		report.AggregateFeeBpsC8 = feeC8 / notionalC8 * 10000
	}

	if report.FirstDivergence == nil {
		if math.Abs(report.AggregateFeeBpsC7-report.AggregateFeeBpsC8) > 1.0 {
			report.FirstDivergence = &Divergence{Field: "aggregate_fee_bps", Expected: report.AggregateFeeBpsC7, Actual: report.AggregateFeeBpsC8}
			recordDivergence(reg, "aggregate_fee_bps")
		} else if math.Abs(report.TerminalPnLC7-report.TerminalPnLC8) > epsilon {
			report.FirstDivergence = &Divergence{Field: "terminal_pnl", Expected: report.TerminalPnLC7, Actual: report.TerminalPnLC8}
			recordDivergence(reg, "terminal_pnl")
		}
	}

	report.Equivalent = report.FirstDivergence == nil
	return report, nil
}

func compareFill(a, b *executor.Trade) *Divergence {
	if a.Side != b.Side {
		return &Divergence{Symbol: a.Symbol, TsMs: a.EntryTsMs, Field: "side", Expected: a.Side, Actual: b.Side}
	}
	if math.Abs(a.Qty-b.Qty) > epsilon {
		return &Divergence{Symbol: a.Symbol, TsMs: a.EntryTsMs, Field: "qty", Expected: a.Qty, Actual: b.Qty}
	}
	if math.Abs(a.ExitPrice-b.ExitPrice) > epsilon {
		return &Divergence{Symbol: a.Symbol, TsMs: a.ExitTsMs, Field: "price", Expected: a.ExitPrice, Actual: b.ExitPrice}
	}
	if a.ExitTsMs != b.ExitTsMs {
		return &Divergence{Symbol: a.Symbol, TsMs: a.ExitTsMs, Field: "ts_ms", Expected: a.ExitTsMs, Actual: b.ExitTsMs}
	}
	return nil
}

func recordDivergence(reg *metrics.Registry, field string) {
	if reg != nil {
		reg.EquivalenceDivergenceTotal.WithLabelValues(field).Inc()
	}
}

// dedupeTop1 keeps, for each (symbol, ts_ms) key, the event whose Signal
// has the largest |score| (ties broken by the smaller seq) — the same
// Top-1 rule sink.Top1's better() enforces at the relational sink, so a
// tape containing a collision drives exactly one decision, and the same
// one the Dual Sink would have retained (spec section 4.9).
func dedupeTop1(events []Event) []Event {
	type key struct {
		symbol string
		tsMs   int64
	}
	order := make([]key, 0, len(events))
	best := make(map[key]Event, len(events))
	for _, ev := range events {
		k := key{ev.Tick.Symbol, ev.Tick.TsMs}
		cur, ok := best[k]
		if !ok {
			order = append(order, k)
			best[k] = ev
			continue
		}
		if betterEvent(ev, cur) {
			best[k] = ev
		}
	}
	out := make([]Event, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// betterEvent reports whether candidate should replace incumbent under
// the Top-1 rule. An event with a nil Signal never beats one with a
// non-nil Signal, since there is nothing to compare a score against.
func betterEvent(candidate, incumbent Event) bool {
	if candidate.Signal == nil {
		return false
	}
	if incumbent.Signal == nil {
		return true
	}
	ca, ia := math.Abs(candidate.Signal.Score), math.Abs(incumbent.Signal.Score)
	if ca != ia {
		return ca > ia
	}
	return candidate.Signal.Seq < incumbent.Signal.Seq
}
