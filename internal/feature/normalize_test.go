package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	row := AlignedRow{
		Symbol: "BTCUSDT", TsMs: 1_700_000_000_000,
		Mid: 100, BestBid: 99.99, BestAsk: 100.01,
		OfiZ: 1.2, CvdZ: -0.5,
	}
	out, err := Normalize(row, "UTC", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Consistency)
	assert.False(t, out.Warmup)
	assert.Equal(t, 1.2, out.ZOFI)
	assert.Equal(t, -0.5, out.ZCVD)
	assert.NotEmpty(t, out.BusinessDate)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	consistency := 0.9
	warmup := true
	row := AlignedRow{
		Symbol: "BTCUSDT", TsMs: 1_700_000_000_000,
		Mid: 100, BestBid: 99.99, BestAsk: 100.01,
		Consistency: &consistency, Warmup: &warmup,
		BusinessDate: "2026-01-01",
	}
	first, err := Normalize(row, "UTC", 0)
	require.NoError(t, err)

	c2 := first.Consistency
	w2 := first.Warmup
	again, err := Normalize(AlignedRow{
		Symbol: first.Symbol, TsMs: first.TsMs, Mid: first.Mid,
		BestBid: first.BestBid, BestAsk: first.BestAsk, SpreadBps: first.SpreadBps,
		OfiZ: first.ZOFI, CvdZ: first.ZCVD, Consistency: &c2, Warmup: &w2,
		BusinessDate: first.BusinessDate,
	}, "UTC", 0)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestNormalizeRejectsInvariantViolation(t *testing.T) {
	row := AlignedRow{Symbol: "X", TsMs: 1, Mid: 101, BestBid: 99, BestAsk: 100}
	_, err := Normalize(row, "UTC", 0)
	assert.Error(t, err)
}
