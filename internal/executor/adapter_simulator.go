package executor

import (
	"context"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/signal"
)

// AdapterSimulator drives the same per-symbol open/close decisions as
// Simulator, but executes every fill through an Adapter instead of
// computing fee/slippage inline. It exists so the Equivalence Harness
// (C9) can run the Trade Simulator's accounting path and the Broker
// Adapter path side by side on the identical tape and compare outputs,
// per spec section 4.9.
type AdapterSimulator struct {
	cfg        config.BacktestConfig
	gatingMode signal.GatingMode
	evaluator  *Evaluator
	adapter    Adapter
	runID      string

	state map[string]*symbolState
}

// NewAdapterSimulator constructs an adapter-driven simulator bound to
// adapter for fills.
func NewAdapterSimulator(adapter Adapter, cfg config.BacktestConfig, gatingMode signal.GatingMode, runID string) *AdapterSimulator {
	return &AdapterSimulator{
		cfg:        cfg,
		gatingMode: gatingMode,
		evaluator:  NewEvaluator(),
		adapter:    adapter,
		runID:      runID,
		state:      make(map[string]*symbolState),
	}
}

func (a *AdapterSimulator) stateFor(symbol string) *symbolState {
	st, ok := a.state[symbol]
	if !ok {
		st = &symbolState{}
		a.state[symbol] = st
	}
	return st
}

// Process mirrors Simulator.Process's decision logic exactly (so the two
// diverge only in execution backend, not in when they trade) but submits
// every entry/exit through Adapter and reconstructs the closed Trade from
// the resulting Fills.
func (a *AdapterSimulator) Process(ctx context.Context, tick Tick, sig *signal.Signal) (*Trade, error) {
	st := a.stateFor(tick.Symbol)

	sessionEnd := st.lastBusinessDate != "" && tick.BusinessDate != "" && tick.BusinessDate != st.lastBusinessDate
	st.lastBusinessDate = tick.BusinessDate

	actionable := sig != nil && sig.Actionable(a.gatingMode) && sig.SideHint != signal.SideFlat

	var trade *Trade
	openedViaReverse := false

	if st.position != nil {
		var opposite *signal.Signal
		if actionable && sig.SideHint != st.position.Side {
			opposite = sig
		}

		res := a.evaluator.Evaluate(ExitInputs{
			Position:       *st.position,
			Tick:           tick,
			Cfg:            a.cfg,
			OppositeSignal: opposite,
			IsSessionEnd:   sessionEnd,
		})

		if res.ShouldExit {
			t, err := a.closePosition(ctx, st.position, tick, res)
			if err != nil {
				return nil, err
			}
			trade = t
			st.position = nil
			if res.Reason == ExitReverseSignal {
				if err := a.openPosition(ctx, st, tick, opposite); err != nil {
					return trade, err
				}
				openedViaReverse = true
			}
		}
	}

	if !openedViaReverse && st.position == nil && actionable {
		if err := a.openPosition(ctx, st, tick, sig); err != nil {
			return trade, err
		}
	}

	return trade, nil
}

func (a *AdapterSimulator) openPosition(ctx context.Context, st *symbolState, tick Tick, sig *signal.Signal) error {
	notional := a.cfg.NotionalPerTrade
	qty := notional / tick.Mid

	_, err := a.adapter.Submit(ctx, Order{
		Symbol: tick.Symbol, Side: sig.SideHint, Qty: qty, Price: tick.Mid,
		TsMs: tick.TsMs, SignalID: sig.SignalID, Scenario: tick.Scenario, SpreadBps: tick.SpreadBps,
	})
	if err != nil {
		return err
	}

	fills, err := a.adapter.FetchFills(ctx)
	if err != nil {
		return err
	}
	entryFeeBps := 0.0
	if len(fills) > 0 {
		entryFeeBps = fills[len(fills)-1].FeeBps
	}

	st.position = &Position{
		Symbol:         tick.Symbol,
		Side:           sig.SideHint,
		Qty:            qty,
		EntryPrice:     tick.Mid,
		EntryTsMs:      tick.TsMs,
		EntryNotional:  notional,
		EntryFeeCost:   notional * entryFeeBps / 10000,
		EntryScenario:  tick.Scenario,
		EntrySpreadBps: tick.SpreadBps,
		EntrySignalID:  sig.SignalID,
	}
	return nil
}

func (a *AdapterSimulator) closePosition(ctx context.Context, pos *Position, tick Tick, res ExitResult) (*Trade, error) {
	closingSide := signal.SideSell
	if pos.Side == signal.SideSell {
		closingSide = signal.SideBuy
	}

	// Exit fee/slippage price off the entry-time scenario and spread, not
	// the exit tick's, matching Simulator.closePosition exactly — otherwise
	// a scenario change between entry and exit would make C7 and C8 compute
	// different NetPnL for the identical trade (spec section 4.9, P6).
	_, err := a.adapter.Submit(ctx, Order{
		Symbol: pos.Symbol, Side: closingSide, Qty: pos.Qty, Price: res.ExitPrice,
		TsMs: res.ExitTsMs, SignalID: pos.EntrySignalID, Scenario: pos.EntryScenario, SpreadBps: pos.EntrySpreadBps,
	})
	if err != nil {
		return nil, err
	}
	fills, err := a.adapter.FetchFills(ctx)
	if err != nil {
		return nil, err
	}
	exitFeeBps := 0.0
	if len(fills) > 0 {
		exitFeeBps = fills[len(fills)-1].FeeBps
	}
	exitFeeCost := pos.Qty * res.ExitPrice * exitFeeBps / 10000

	grossPnL := sideSign(pos.Side) * (res.ExitPrice - pos.EntryPrice) * pos.Qty
	netPnL := grossPnL - pos.EntryFeeCost - exitFeeCost

	return &Trade{
		Symbol:        pos.Symbol,
		Side:          pos.Side,
		Qty:           pos.Qty,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     res.ExitPrice,
		EntryTsMs:     pos.EntryTsMs,
		ExitTsMs:      res.ExitTsMs,
		ExitReason:    res.Reason,
		EntryFee:      pos.EntryFeeCost,
		ExitFee:       exitFeeCost,
		GrossPnL:      grossPnL,
		NetPnL:        netPnL,
		EntrySignalID: pos.EntrySignalID,
		RunID:         a.runID,
	}, nil
}

// OpenPosition reports the current open position for symbol, or nil.
func (a *AdapterSimulator) OpenPosition(symbol string) *Position {
	st := a.stateFor(symbol)
	if st.position == nil {
		return nil
	}
	p := *st.position
	return &p
}
