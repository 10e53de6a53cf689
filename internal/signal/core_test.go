package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Signal.WarmupMin = 2
	cfg.Signal.WeakSignalThreshold = 0.5
	cfg.Signal.ConsistencyMin = 0.8
	cfg.Signal.LagMaxSec = 5
	cfg.Signal.SpreadMaxBps = 50
	cfg.Signal.DedupeMs = 2000
	cfg.Signal.MinConsecutiveSameDir = 1
	cfg.Signal.Thresholds.Active = config.SideThresholds{Buy: 1.0, Sell: -1.0}
	cfg.Signal.Thresholds.Quiet = config.SideThresholds{Buy: 1.0, Sell: -1.0}
	cfg.Components.Fusion = config.FusionConfig{WOFI: 1.0, WCVD: 0.0, FlipRearmMargin: 0.1, AdaptiveCooldownK: 1.0, ExpectedHoldSec: 60}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func baseRow(symbol string, tsMs int64, zOFI float64) feature.FeatureRow {
	return feature.FeatureRow{
		Symbol: symbol, TsMs: tsMs, Mid: 100, BestBid: 99.9, BestAsk: 100.1,
		SpreadBps: 5, ZOFI: zOFI, ZCVD: 0, Consistency: 1.0, Warmup: false,
		Scenario2x2: feature.ScenarioActiveHigh,
	}
}

func warmUp(t *testing.T, c *Core, symbol string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := c.Evaluate(baseRow(symbol, int64(i)*100, 0))
		require.NoError(t, err)
	}
}

func TestWarmupGateBlocksEarlyRows(t *testing.T) {
	c := NewCore(testConfig(), "run1")
	sig, err := c.Evaluate(baseRow("BTCUSDT", 1000, 2.0))
	require.NoError(t, err)
	assert.False(t, sig.Confirm)
	assert.Equal(t, DecisionFailWarmup, sig.DecisionCode)
}

func TestAdmitProducesContractSatisfyingSignal(t *testing.T) {
	c := NewCore(testConfig(), "run1")
	warmUp(t, c, "BTCUSDT", 2)

	sig, err := c.Evaluate(baseRow("BTCUSDT", 10_000, 2.0))
	require.NoError(t, err)
	assert.True(t, sig.Confirm)
	assert.Equal(t, 1, sig.Gating)
	assert.Equal(t, DecisionOK, sig.DecisionCode)
	assert.Equal(t, SideBuy, sig.SideHint)
	assert.True(t, sig.SatisfiesContract())
	assert.Equal(t, SchemaVersion, sig.SchemaVersion)
	assert.LessOrEqual(t, len(sig.SignalID), 36)
}

func TestWeakSignalRejected(t *testing.T) {
	c := NewCore(testConfig(), "run1")
	warmUp(t, c, "BTCUSDT", 2)
	sig, err := c.Evaluate(baseRow("BTCUSDT", 10_000, 0.1))
	require.NoError(t, err)
	assert.False(t, sig.Confirm)
	assert.Equal(t, DecisionFailWeak, sig.DecisionCode)
}

func TestDedupeRejectsSameSideWithinWindow(t *testing.T) {
	c := NewCore(testConfig(), "run1")
	warmUp(t, c, "BTCUSDT", 2)

	first, err := c.Evaluate(baseRow("BTCUSDT", 10_000, 2.0))
	require.NoError(t, err)
	require.True(t, first.Confirm)

	second, err := c.Evaluate(baseRow("BTCUSDT", 10_500, 2.0))
	require.NoError(t, err)
	assert.False(t, second.Confirm)
	assert.Equal(t, DecisionFailDedupe, second.DecisionCode)
}

func TestCooldownBlocksAfterAdmit(t *testing.T) {
	cfg := testConfig()
	cfg.Signal.DedupeMs = 0
	c := NewCore(cfg, "run1")
	warmUp(t, c, "BTCUSDT", 2)

	first, err := c.Evaluate(baseRow("BTCUSDT", 10_000, 2.0))
	require.NoError(t, err)
	require.True(t, first.Confirm)
	require.Greater(t, first.CooldownMs, int64(0))

	// ts within cooldown window but a different (opposite) side still
	// blocked by cooldown, not by dedupe (dedupe_ms=0 here).
	second, err := c.Evaluate(baseRow("BTCUSDT", 10_000+first.CooldownMs-1, -2.0))
	require.NoError(t, err)
	assert.False(t, second.Confirm)
	assert.Equal(t, DecisionFailCooldown, second.DecisionCode)
}

func TestFlipHysteresisRequiresMargin(t *testing.T) {
	cfg := testConfig()
	cfg.Signal.DedupeMs = 0
	cfg.Components.Fusion.AdaptiveCooldownK = 0 // isolate hysteresis from cooldown
	c := NewCore(cfg, "run1")
	warmUp(t, c, "BTCUSDT", 2)

	first, err := c.Evaluate(baseRow("BTCUSDT", 10_000, 2.0))
	require.NoError(t, err)
	require.True(t, first.Confirm)

	// Opposite side with a smaller magnitude than last_abs_score + margin.
	second, err := c.Evaluate(baseRow("BTCUSDT", 10_100, -1.05))
	require.NoError(t, err)
	assert.False(t, second.Confirm)
	assert.Equal(t, DecisionFailFlipRearm, second.DecisionCode)
}

func TestConsecutiveSameDirEmitsWithoutConfirm(t *testing.T) {
	cfg := testConfig()
	cfg.Signal.MinConsecutiveSameDir = 2
	cfg.Signal.DedupeMs = 0
	c := NewCore(cfg, "run1")
	warmUp(t, c, "BTCUSDT", 2)

	first, err := c.Evaluate(baseRow("BTCUSDT", 10_000, 2.0))
	require.NoError(t, err)
	assert.False(t, first.Confirm)
	assert.Equal(t, DecisionFailConsecutive, first.DecisionCode)
	assert.Equal(t, 0, first.Gating)
}

func TestContractViolationNeverFromOrdinaryGating(t *testing.T) {
	cfg := testConfig()
	c := NewCore(cfg, "run1")
	warmUp(t, c, "BTCUSDT", 2)

	sig, err := c.Evaluate(baseRow("BTCUSDT", 10_000, 0.1))
	require.NoError(t, err)
	assert.False(t, sig.Confirm)
	assert.True(t, sig.SatisfiesContract())
}

func TestSignalIDDeterministic(t *testing.T) {
	id1 := signalID("run-abcdefghij", 1_700_000_000_123, 7, "BTCUSDT")
	id2 := signalID("run-abcdefghij", 1_700_000_000_123, 7, "BTCUSDT")
	assert.Equal(t, id1, id2)
	assert.LessOrEqual(t, len(id1), 36)
}

func TestActionableRespectsGatingMode(t *testing.T) {
	soft := Signal{Confirm: false, Gating: 0, DecisionCode: DecisionFailWeak}
	hard := Signal{Confirm: false, Gating: 0, DecisionCode: DecisionFailSpread}

	assert.False(t, soft.Actionable(GatingStrict))
	assert.True(t, soft.Actionable(GatingIgnoreSoft))
	assert.True(t, soft.Actionable(GatingIgnoreAll))
	assert.False(t, hard.Actionable(GatingIgnoreSoft))
	assert.False(t, hard.Actionable(GatingIgnoreAll))

	contractViolation := Signal{Confirm: true, Gating: 0, DecisionCode: DecisionFailSpread}
	assert.False(t, contractViolation.Actionable(GatingIgnoreAll))
}
