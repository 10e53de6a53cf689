package equivalence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/executor"
	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/signal"
)

func backtestCfg() config.BacktestConfig {
	cfg := config.Defaults().Backtest
	cfg.FeeModel = "taker_static"
	cfg.SlippageModel = "static"
	cfg.SlippageBps = 0
	cfg.TakerFeeBps = 5
	cfg.NotionalPerTrade = 1000
	cfg.MinHoldTimeSec = 0
	cfg.StopLossBps = 10
	cfg.TakeProfitBps = 20
	return cfg
}

func adapterCfg() config.AdapterConfig {
	cfg := config.AdapterConfig{}
	cfg.RateLimit.Place = config.RateLimitConfig{RPS: 1000, Burst: 1000}
	cfg.RateLimit.Cancel = config.RateLimitConfig{RPS: 1000, Burst: 1000}
	cfg.DefaultRules = config.VenueRuleConfig{LotSize: 0.0001, TickSize: 0.01, MinNotional: 1}
	return cfg
}

func confirmedSignal(symbol string, tsMs int64, side signal.SideHint) *signal.Signal {
	return confirmedSignalScored(symbol, tsMs, side, 0, 0)
}

func confirmedSignalScored(symbol string, tsMs int64, side signal.SideHint, score float64, seq int64) *signal.Signal {
	return &signal.Signal{
		Symbol: symbol, TsMs: tsMs, SignalID: "sig-1", SideHint: side, Score: score, Seq: seq,
		Gating: 1, Confirm: true, DecisionCode: signal.DecisionOK,
	}
}

func TestHarness_EquivalentOnSimpleOpenAndStopLoss(t *testing.T) {
	cfg := backtestCfg()
	events := []Event{
		{Tick: executor.Tick{Symbol: "BTCUSDT", TsMs: 0, Mid: 100, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}, Signal: confirmedSignal("BTCUSDT", 0, signal.SideBuy)},
		{Tick: executor.Tick{Symbol: "BTCUSDT", TsMs: 1000, Mid: 98.8, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}, Signal: nil},
	}

	report, err := Run(context.Background(), events, cfg, adapterCfg(), "run-1", signal.GatingStrict, nil)
	require.NoError(t, err)
	assert.True(t, report.Equivalent, "report: %+v", report)
	assert.Nil(t, report.FirstDivergence)
	assert.Equal(t, 1, report.TradeCountC7)
	assert.Equal(t, report.TradeCountC7, report.TradeCountC8)
	assert.InDelta(t, report.TerminalPnLC7, report.TerminalPnLC8, epsilon)
}

func TestHarness_DedupesCollidingTimestampToTop1(t *testing.T) {
	cfg := backtestCfg()
	events := []Event{
		// Weaker score, seen first: must lose to the stronger one below
		// rather than win by arriving first.
		{Tick: executor.Tick{Symbol: "BTCUSDT", TsMs: 0, Mid: 100, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}, Signal: confirmedSignalScored("BTCUSDT", 0, signal.SideSell, 0.4, 2)},
		// Same (symbol, ts_ms), larger |score|: this is the one that must
		// be acted on.
		{Tick: executor.Tick{Symbol: "BTCUSDT", TsMs: 0, Mid: 100, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}, Signal: confirmedSignalScored("BTCUSDT", 0, signal.SideBuy, 1.2, 1)},
	}

	report, err := Run(context.Background(), events, cfg, adapterCfg(), "run-1", signal.GatingStrict, nil)
	require.NoError(t, err)
	assert.True(t, report.Equivalent)
	assert.Equal(t, 0, report.TradeCountC7, "only one open event should land; with no further ticks no exit has fired yet")

	deduped := dedupeTop1(events)
	require.Len(t, deduped, 1)
	assert.Equal(t, signal.SideBuy, deduped[0].Signal.SideHint, "the larger |score| signal must win, not the first-seen one")
}

// TestHarness_EquivalentWhenScenarioChangesBetweenEntryAndExit guards
// against C7 and C8 pricing an exit off different scenario/spread
// snapshots: piecewise slippage makes the exit cost scenario-sensitive,
// so if either backend priced the exit off the exit tick's scenario
// instead of the position's entry-time scenario, their NetPnL would
// diverge even though both see the identical tape.
func TestHarness_EquivalentWhenScenarioChangesBetweenEntryAndExit(t *testing.T) {
	cfg := backtestCfg()
	cfg.SlippageModel = "piecewise"
	cfg.SlippagePiecewise = config.SlippagePiecewiseConfig{
		SpreadBaseMultiplier: 1.0,
		ScenarioMultipliers: map[string]float64{
			string(feature.ScenarioActiveHigh): 2.0,
			string(feature.ScenarioQuietLow):   0.5,
		},
	}

	events := []Event{
		{Tick: executor.Tick{Symbol: "BTCUSDT", TsMs: 0, Mid: 100, Scenario: feature.ScenarioActiveHigh, SpreadBps: 10, BusinessDate: "2026-07-30"}, Signal: confirmedSignal("BTCUSDT", 0, signal.SideBuy)},
		// The regime flips to quiet/low by the exit tick; the exit price
		// must still be costed against the entry-time scenario.
		{Tick: executor.Tick{Symbol: "BTCUSDT", TsMs: 1000, Mid: 100.5, Scenario: feature.ScenarioQuietLow, SpreadBps: 4, BusinessDate: "2026-07-30"}, Signal: nil},
	}

	report, err := Run(context.Background(), events, cfg, adapterCfg(), "run-1", signal.GatingStrict, nil)
	require.NoError(t, err)
	assert.True(t, report.Equivalent, "report: %+v", report)
	assert.Nil(t, report.FirstDivergence)
	assert.InDelta(t, report.TerminalPnLC7, report.TerminalPnLC8, epsilon)
}

func TestHarness_RejectsContractViolatingSignal(t *testing.T) {
	cfg := backtestCfg()
	bad := confirmedSignal("BTCUSDT", 0, signal.SideBuy)
	bad.Gating = 0 // confirm=true but gating!=1: violates the hard contract
	events := []Event{
		{Tick: executor.Tick{Symbol: "BTCUSDT", TsMs: 0, Mid: 100, Scenario: feature.ScenarioActiveHigh, BusinessDate: "2026-07-30"}, Signal: bad},
	}

	_, err := Run(context.Background(), events, cfg, adapterCfg(), "run-1", signal.GatingStrict, nil)
	require.Error(t, err)
}
