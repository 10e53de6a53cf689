package feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAligner() *Aligner {
	return NewAligner(AlignerConfig{Regime: RegimeConfig{
		ActiveSpreadThresholdBps: 10,
		HighVolThresholdBps:      5,
	}})
}

func TestAlignerGapSecondCopiesLastKnownGood(t *testing.T) {
	a := testAligner()
	row, err := a.Observe(RawObservation{Symbol: "BTCUSDT", TsMs: 1_700_000_000_000, Mid: 50000, BestBid: 49995, BestAsk: 50005, SpreadBps: 2})
	require.NoError(t, err)
	assert.False(t, row.IsGapSecond)

	gap, err := a.FillGap("BTCUSDT", 1_700_000_001_000)
	require.NoError(t, err)
	assert.True(t, gap.IsGapSecond)
	assert.Equal(t, 0.0, gap.Return1s)
	assert.Equal(t, 50000.0, gap.Mid)
}

func TestAlignerReturnNeverUsesStaleNextBar(t *testing.T) {
	a := testAligner()
	_, err := a.Observe(RawObservation{Symbol: "ETHUSDT", TsMs: 1000, Mid: 100, SpreadBps: 1})
	require.NoError(t, err)

	gap, err := a.FillGap("ETHUSDT", 2000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, gap.Return1s)

	next, err := a.Observe(RawObservation{Symbol: "ETHUSDT", TsMs: 3000, Mid: 110, SpreadBps: 1})
	require.NoError(t, err)
	assert.InDelta(t, (110.0-100.0)/100.0*10000, next.Return1s, 1e-9)
}

func TestAlignerRejectsNonMonotonicTimestamps(t *testing.T) {
	a := testAligner()
	_, err := a.Observe(RawObservation{Symbol: "BTCUSDT", TsMs: 2000, Mid: 100, SpreadBps: 1})
	require.NoError(t, err)
	_, err = a.Observe(RawObservation{Symbol: "BTCUSDT", TsMs: 1000, Mid: 100, SpreadBps: 1})
	assert.Error(t, err)
}

func TestRegimeAxesAreIndependent(t *testing.T) {
	a := testAligner()
	row, err := a.Observe(RawObservation{Symbol: "X", TsMs: 1000, Mid: 100, SpreadBps: 2})
	require.NoError(t, err)
	assert.Equal(t, ScenarioActiveLow, row.Scenario)

	row2, err := a.Observe(RawObservation{Symbol: "Y", TsMs: 1000, Mid: 100, SpreadBps: 20})
	require.NoError(t, err)
	assert.Equal(t, ScenarioQuietLow, row2.Scenario)
}

func TestBusinessDateDSTFallBackAttributesOnce(t *testing.T) {
	// 2026-11-01 01:30 EDT and the repeated 01:30 EST both belong to
	// business date 2026-11-01 under rollover_hour=0.
	firstPass := time.Date(2026, 11, 1, 5, 30, 0, 0, time.UTC).UnixMilli()   // 01:30 EDT
	secondPass := time.Date(2026, 11, 1, 6, 30, 0, 0, time.UTC).UnixMilli()  // 01:30 EST (repeat)

	d1, err := BusinessDate(firstPass, "America/New_York", 0)
	require.NoError(t, err)
	d2, err := BusinessDate(secondPass, "America/New_York", 0)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Equal(t, "2026-11-01", d1)
}
