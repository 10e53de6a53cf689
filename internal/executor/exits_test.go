package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/signal"
)

func backtestCfg() config.BacktestConfig {
	return config.Defaults().Backtest
}

func longPosition() Position {
	return Position{
		Symbol:     "BTCUSDT",
		Side:       signal.SideBuy,
		Qty:        0.1,
		EntryPrice: 100.0,
		EntryTsMs:  0,
	}
}

func TestExitEvaluator_NoExit(t *testing.T) {
	ev := NewEvaluator()
	cfg := backtestCfg()
	res := ev.Evaluate(ExitInputs{
		Position: longPosition(),
		Tick:     Tick{Symbol: "BTCUSDT", TsMs: 1000, Mid: 100.05, BusinessDate: "2026-07-30"},
		Cfg:      cfg,
	})
	assert.False(t, res.ShouldExit)
	assert.Equal(t, ExitNone, res.Reason)
}

func TestExitEvaluator_Timeout(t *testing.T) {
	ev := NewEvaluator()
	cfg := backtestCfg()
	res := ev.Evaluate(ExitInputs{
		Position: longPosition(),
		Tick:     Tick{Symbol: "BTCUSDT", TsMs: int64(cfg.MaxHoldTimeSec)*1000 + 1, Mid: 100.05, BusinessDate: "2026-07-30"},
		Cfg:      cfg,
	})
	require.True(t, res.ShouldExit)
	assert.Equal(t, ExitTimeout, res.Reason)
}

func TestExitEvaluator_StopLossNotGatedByMinHold(t *testing.T) {
	ev := NewEvaluator()
	cfg := backtestCfg()
	pos := longPosition()
	// Stop-loss is not gated by min hold time and is checked ahead of
	// take-profit, so a deep loss right after entry exits as stop_loss.
	stopPrice := pos.EntryPrice * (1 - cfg.StopLossBps/10000 - 0.0001)
	res := ev.Evaluate(ExitInputs{
		Position: pos,
		Tick:     Tick{Symbol: "BTCUSDT", TsMs: 1000, Mid: stopPrice, BusinessDate: "2026-07-30"},
		Cfg:      cfg,
	})
	require.True(t, res.ShouldExit)
	assert.Equal(t, ExitStopLoss, res.Reason)
}

func TestExitEvaluator_TakeProfitGatedByMinHold(t *testing.T) {
	ev := NewEvaluator()
	cfg := backtestCfg()
	pos := longPosition()
	tpPrice := pos.EntryPrice * (1 + cfg.TakeProfitBps/10000 + 0.0001)

	// Before min_hold_time_sec: take-profit must not fire yet.
	early := ev.Evaluate(ExitInputs{
		Position: pos,
		Tick:     Tick{Symbol: "BTCUSDT", TsMs: 1000, Mid: tpPrice, BusinessDate: "2026-07-30"},
		Cfg:      cfg,
	})
	assert.False(t, early.ShouldExit)

	// After min_hold_time_sec: take-profit fires.
	late := ev.Evaluate(ExitInputs{
		Position: pos,
		Tick:     Tick{Symbol: "BTCUSDT", TsMs: int64(cfg.MinHoldTimeSec)*1000 + 1000, Mid: tpPrice, BusinessDate: "2026-07-30"},
		Cfg:      cfg,
	})
	require.True(t, late.ShouldExit)
	assert.Equal(t, ExitTakeProfit, late.Reason)
}

func TestExitEvaluator_ReverseSignal(t *testing.T) {
	ev := NewEvaluator()
	cfg := backtestCfg()
	pos := longPosition()
	opposite := &signal.Signal{SideHint: signal.SideSell}

	// +10bps: clears deadband_bps=3 but stays under take_profit_bps=20,
	// which is checked ahead of reverse_signal.
	res := ev.Evaluate(ExitInputs{
		Position:       pos,
		Tick:           Tick{Symbol: "BTCUSDT", TsMs: int64(cfg.MinHoldTimeSec)*1000 + 1000, Mid: pos.EntryPrice * 1.001, BusinessDate: "2026-07-30"},
		Cfg:            cfg,
		OppositeSignal: opposite,
	})
	require.True(t, res.ShouldExit)
	assert.Equal(t, ExitReverseSignal, res.Reason)
}

func TestExitEvaluator_RolloverClose(t *testing.T) {
	ev := NewEvaluator()
	cfg := backtestCfg()
	pos := longPosition()
	res := ev.Evaluate(ExitInputs{
		Position:     pos,
		Tick:         Tick{Symbol: "BTCUSDT", TsMs: 1000, Mid: pos.EntryPrice, BusinessDate: "2026-07-31"},
		Cfg:          cfg,
		IsSessionEnd: true,
	})
	require.True(t, res.ShouldExit)
	assert.Equal(t, ExitRolloverClose, res.Reason)
}

func TestExitReasonMarshalJSON(t *testing.T) {
	data, err := ExitStopLoss.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"stop_loss"`, string(data))
}
