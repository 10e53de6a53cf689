package executor

import (
	"sync"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/signal"
)

type symbolState struct {
	position         *Position
	lastBusinessDate string
}

// Simulator is the Trade Simulator (C7): it consumes confirmed Signals
// (subject to gating_mode) plus a mid-price tick for the same symbol and
// timestamp, maintains one open Position per symbol, and closes it
// through the fixed exit-priority chain. Determinism (spec section 4.7)
// follows directly from every input — signal, tick, fee draw, clock —
// being deterministic given the same tape and config.
type Simulator struct {
	cfg        config.BacktestConfig
	gatingMode signal.GatingMode
	evaluator  *Evaluator
	slippage   SlippageModel
	runID      string

	mu       sync.Mutex
	state    map[string]*symbolState
	feeAccts map[string]FeeAccountant
}

// NewSimulator constructs a Trade Simulator bound to one run's resolved
// backtest configuration.
func NewSimulator(cfg config.BacktestConfig, gatingMode signal.GatingMode, runID string) *Simulator {
	return &Simulator{
		cfg:        cfg,
		gatingMode: gatingMode,
		evaluator:  NewEvaluator(),
		slippage:   NewSlippageModel(cfg),
		runID:      runID,
		state:      make(map[string]*symbolState),
		feeAccts:   make(map[string]FeeAccountant),
	}
}

func (s *Simulator) stateFor(symbol string) *symbolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[symbol]
	if !ok {
		st = &symbolState{}
		s.state[symbol] = st
	}
	return st
}

func (s *Simulator) feesFor(symbol string) FeeAccountant {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.feeAccts[symbol]
	if !ok {
		acct = NewFeeAccountant(s.cfg, symbol)
		s.feeAccts[symbol] = acct
	}
	return acct
}

// Process evaluates one (tick, optional signal) pair for tick.Symbol:
// closing an open position through the exit chain if one fires, then
// opening a new position if one is flat and a confirmed directional
// signal is present. It returns the Trade produced if a position closed
// this call, or nil.
func (s *Simulator) Process(tick Tick, sig *signal.Signal) (*Trade, error) {
	st := s.stateFor(tick.Symbol)

	sessionEnd := st.lastBusinessDate != "" && tick.BusinessDate != "" && tick.BusinessDate != st.lastBusinessDate
	st.lastBusinessDate = tick.BusinessDate

	actionable := sig != nil && sig.Actionable(s.gatingMode) && sig.SideHint != signal.SideFlat

	var trade *Trade
	openedViaReverse := false

	if st.position != nil {
		var opposite *signal.Signal
		if actionable && sig.SideHint != st.position.Side {
			opposite = sig
		}

		res := s.evaluator.Evaluate(ExitInputs{
			Position:       *st.position,
			Tick:           tick,
			Cfg:            s.cfg,
			OppositeSignal: opposite,
			IsSessionEnd:   sessionEnd,
		})

		if res.ShouldExit {
			t := s.closePosition(st.position, res)
			trade = &t
			st.position = nil
			if res.Reason == ExitReverseSignal {
				s.openPosition(st, tick, opposite)
				openedViaReverse = true
			}
		}
	}

	if !openedViaReverse && st.position == nil && actionable {
		s.openPosition(st, tick, sig)
	}

	return trade, nil
}

func (s *Simulator) openPosition(st *symbolState, tick Tick, sig *signal.Signal) {
	notional := s.cfg.NotionalPerTrade
	qty := notional / tick.Mid

	acct := s.feesFor(tick.Symbol)
	feeBps, isMaker := acct.Price(tick.Scenario)
	makerProb := 0.0
	if isMaker {
		makerProb = 1.0
	}

	slipBps := s.slippage.SlippageBps(tick.Scenario, tick.SpreadBps)

	st.position = &Position{
		Symbol:         tick.Symbol,
		Side:           sig.SideHint,
		Qty:            qty,
		EntryPrice:     tick.Mid,
		EntryTsMs:      tick.TsMs,
		EntryNotional:  notional,
		EntryMakerProb: makerProb,
		EntryFeeCost:   notional * feeBps / 10000,
		EntrySlipCost:  notional * slipBps / 10000,
		EntryScenario:  tick.Scenario,
		EntrySpreadBps: tick.SpreadBps,
		EntrySignalID:  sig.SignalID,
	}
}

func (s *Simulator) closePosition(pos *Position, res ExitResult) Trade {
	acct := s.feesFor(pos.Symbol)
	exitFeeBps, _ := acct.Price(pos.EntryScenario)
	exitSlipBps := s.slippage.SlippageBps(pos.EntryScenario, pos.EntrySpreadBps)

	exitNotional := pos.Qty * res.ExitPrice
	exitFeeCost := exitNotional * exitFeeBps / 10000
	exitSlipCost := exitNotional * exitSlipBps / 10000

	grossPnL := sideSign(pos.Side) * (res.ExitPrice - pos.EntryPrice) * pos.Qty
	netPnL := grossPnL - pos.EntryFeeCost - exitFeeCost - pos.EntrySlipCost - exitSlipCost

	return Trade{
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
		SlippageCost:  pos.EntrySlipCost + exitSlipCost,
		GrossPnL:      grossPnL,
		NetPnL:        netPnL,
		EntrySignalID: pos.EntrySignalID,
		RunID:         s.runID,
	}
}

// OpenPosition reports the current open position for symbol, or nil.
func (s *Simulator) OpenPosition(symbol string) *Position {
	st := s.stateFor(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.position == nil {
		return nil
	}
	p := *st.position
	return &p
}

// TickFromFeatureRow adapts a normalized FeatureRow into the Tick shape
// the simulator consumes, so callers driving C7 from the same stream as
// C4 don't need to duplicate field mapping.
func TickFromFeatureRow(row feature.FeatureRow) Tick {
	return Tick{
		Symbol:       row.Symbol,
		TsMs:         row.TsMs,
		Mid:          row.Mid,
		SpreadBps:    row.SpreadBps,
		Scenario:     row.Scenario2x2,
		BusinessDate: row.BusinessDate,
	}
}
