package executor

import (
	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/signal"
)

// ExitReason represents the reason a position was closed, following the
// teacher's internal/exits.ExitReason iota-ordered-precedence idiom,
// re-purposed to this spec's six rules (section 4.7). The numeric value
// is a label, not a precedence key: precedence is the fixed if-chain order
// Evaluate checks conditions in, exactly as the teacher's EvaluateExit
// does with its "first trigger wins" chain.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitTimeout
	ExitStopLoss
	ExitTakeProfit
	ExitReverseSignal
	ExitRolloverClose
)

func (r ExitReason) String() string {
	switch r {
	case ExitTimeout:
		return "timeout"
	case ExitStopLoss:
		return "stop_loss"
	case ExitTakeProfit:
		return "take_profit"
	case ExitReverseSignal:
		return "reverse_signal"
	case ExitRolloverClose:
		return "rollover_close"
	default:
		return "no_exit"
	}
}

// MarshalJSON stamps the string form on the wire, matching Trade's other
// string-valued fields.
func (r ExitReason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// ExitInputs bundles everything the evaluator needs to judge one open
// position against one tick.
type ExitInputs struct {
	Position        Position
	Tick            Tick
	Cfg             config.BacktestConfig
	OppositeSignal  *signal.Signal
	IsSessionEnd    bool
}

// ExitResult is the evaluator's verdict: ShouldExit implies Reason is one
// of the six named reasons and ExitPrice/ExitTsMs are the stamped values.
type ExitResult struct {
	ShouldExit bool
	Reason     ExitReason
	ExitPrice  float64
	ExitTsMs   int64
}

// Evaluator runs the fixed six-rule exit-priority chain (spec section
// 4.7): highest precedence first, first trigger wins.
type Evaluator struct{}

// NewEvaluator constructs an exit evaluator. It carries no state: every
// input it needs arrives in ExitInputs.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// Evaluate judges in.Position against in.Tick and returns the first exit
// rule that fires, in spec-mandated precedence order.
func (e *Evaluator) Evaluate(in ExitInputs) ExitResult {
	pos := in.Position
	cfg := in.Cfg
	holdSec := float64(in.Tick.TsMs-pos.EntryTsMs) / 1000.0
	pnlBps := sideSign(pos.Side) * (in.Tick.Mid - pos.EntryPrice) / pos.EntryPrice * 10000

	noExit := ExitResult{ShouldExit: false}

	// 1. max_hold_time_sec exceeded.
	if holdSec >= cfg.MaxHoldTimeSec {
		return e.exit(ExitTimeout, in)
	}

	// 2. force_timeout_exit once min_hold_time_sec is reached (wins over
	// TP/SL per spec, hence it is still checked ahead of them).
	if cfg.ForceTimeoutExit && holdSec >= cfg.MinHoldTimeSec {
		return e.exit(ExitTimeout, in)
	}

	// 3. Stop-loss, never gated by min_hold_time_sec.
	if pnlBps <= -cfg.StopLossBps {
		return e.exit(ExitStopLoss, in)
	}

	// 4. Take-profit, gated by min_hold_time_sec.
	if pnlBps >= cfg.TakeProfitBps && holdSec >= cfg.MinHoldTimeSec {
		return e.exit(ExitTakeProfit, in)
	}

	// 5. Reverse-signal: opposite confirmed signal, |pnl| beyond deadband,
	// minimum hold satisfied.
	if in.OppositeSignal != nil && absf(pnlBps) > cfg.DeadbandBps && holdSec >= cfg.MinHoldTimeSec {
		return e.exit(ExitReverseSignal, in)
	}

	// 6. End-of-session / rollover, lowest precedence.
	if in.IsSessionEnd {
		return e.exit(ExitRolloverClose, in)
	}

	return noExit
}

func (e *Evaluator) exit(reason ExitReason, in ExitInputs) ExitResult {
	return ExitResult{
		ShouldExit: true,
		Reason:     reason,
		ExitPrice:  in.Tick.Mid,
		ExitTsMs:   in.Tick.TsMs,
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
