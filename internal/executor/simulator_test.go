package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/signal"
)

func confirmedSignal(side signal.SideHint) *signal.Signal {
	return &signal.Signal{
		SignalID:     "sig-1",
		SideHint:     side,
		Gating:       1,
		Confirm:      true,
		DecisionCode: signal.DecisionOK,
	}
}

func simCfg() config.BacktestConfig {
	cfg := config.Defaults().Backtest
	cfg.TakerFeeBps = 5
	cfg.SlippageBps = 0
	cfg.SlippageModel = "static"
	cfg.FeeModel = "taker_static"
	cfg.NotionalPerTrade = 1000
	cfg.MinHoldTimeSec = 10
	cfg.StopLossBps = 10
	cfg.TakeProfitBps = 20
	return cfg
}

func TestSimulator_OpensPositionOnConfirmedSignal(t *testing.T) {
	sim := NewSimulator(simCfg(), signal.GatingStrict, "run-1")
	tick := Tick{Symbol: "BTCUSDT", TsMs: 0, Mid: 100, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}

	trade, err := sim.Process(tick, confirmedSignal(signal.SideBuy))
	require.NoError(t, err)
	assert.Nil(t, trade, "opening never produces a closed trade")

	pos := sim.OpenPosition("BTCUSDT")
	require.NotNil(t, pos)
	assert.Equal(t, signal.SideBuy, pos.Side)
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, 10.0, pos.Qty)
	assert.InDelta(t, 0.5, pos.EntryFeeCost, 1e-9) // 1000 * 5bps / 10000
}

func TestSimulator_ClosesOnStopLoss(t *testing.T) {
	cfg := simCfg()
	sim := NewSimulator(cfg, signal.GatingStrict, "run-1")

	entryTick := Tick{Symbol: "BTCUSDT", TsMs: 0, Mid: 100, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}
	_, err := sim.Process(entryTick, confirmedSignal(signal.SideBuy))
	require.NoError(t, err)

	stopPrice := 100 * (1 - cfg.StopLossBps/10000 - 0.0001)
	exitTick := Tick{Symbol: "BTCUSDT", TsMs: 1000, Mid: stopPrice, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}
	trade, err := sim.Process(exitTick, nil)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, ExitStopLoss, trade.ExitReason)
	assert.Nil(t, sim.OpenPosition("BTCUSDT"))

	expectedGross := (stopPrice - 100) * 10.0
	assert.InDelta(t, expectedGross, trade.GrossPnL, 1e-9)
	expectedNet := expectedGross - trade.EntryFee - trade.ExitFee - trade.SlippageCost
	assert.InDelta(t, expectedNet, trade.NetPnL, 1e-9)
	assert.Equal(t, 0.0, trade.SlippageCost, "slippage_bps=0 in this config")
}

func TestSimulator_ReverseSignalClosesAndReopensOpposite(t *testing.T) {
	cfg := simCfg()
	sim := NewSimulator(cfg, signal.GatingStrict, "run-1")

	entryTick := Tick{Symbol: "BTCUSDT", TsMs: 0, Mid: 100, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}
	_, err := sim.Process(entryTick, confirmedSignal(signal.SideBuy))
	require.NoError(t, err)

	// Past min_hold_time_sec with a deadband-clearing move and an
	// opposite confirmed signal: reverse_signal exit, then immediate
	// re-open short.
	// +10bps: clears deadband_bps=3 but stays under take_profit_bps=20,
	// which is checked ahead of reverse_signal in the exit chain.
	moveTick := Tick{
		Symbol:       "BTCUSDT",
		TsMs:         int64(cfg.MinHoldTimeSec)*1000 + 1000,
		Mid:          100.1,
		Scenario:     feature.ScenarioActiveHigh,
		BusinessDate: "2026-07-30",
	}
	trade, err := sim.Process(moveTick, confirmedSignal(signal.SideSell))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, ExitReverseSignal, trade.ExitReason)

	pos := sim.OpenPosition("BTCUSDT")
	require.NotNil(t, pos, "reverse exit immediately opens the opposite side")
	assert.Equal(t, signal.SideSell, pos.Side)
	assert.Equal(t, 100.1, pos.EntryPrice)
}

func TestSimulator_RolloverClosesOnBusinessDateChange(t *testing.T) {
	cfg := simCfg()
	sim := NewSimulator(cfg, signal.GatingStrict, "run-1")

	entryTick := Tick{Symbol: "BTCUSDT", TsMs: 0, Mid: 100, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}
	_, err := sim.Process(entryTick, confirmedSignal(signal.SideBuy))
	require.NoError(t, err)

	nextDayTick := Tick{Symbol: "BTCUSDT", TsMs: 500, Mid: 100.01, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-31"}
	trade, err := sim.Process(nextDayTick, nil)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, ExitRolloverClose, trade.ExitReason)
}

func TestTickFromFeatureRow(t *testing.T) {
	row := feature.FeatureRow{
		Symbol: "BTCUSDT", TsMs: 123, Mid: 50, SpreadBps: 1,
		Scenario2x2: feature.ScenarioQuietLow, BusinessDate: "2026-07-30",
	}
	tick := TickFromFeatureRow(row)
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.Equal(t, feature.ScenarioQuietLow, tick.Scenario)
}
