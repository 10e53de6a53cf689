package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/reader"
)

func testAligner() *feature.Aligner {
	return feature.NewAligner(feature.AlignerConfig{Regime: feature.RegimeConfig{
		ActiveSpreadThresholdBps: 10,
		HighVolThresholdBps:      5,
	}})
}

func row(kind reader.Kind, symbol string, tsMs int64, payload map[string]interface{}) reader.RawRow {
	return reader.RawRow{Kind: kind, Symbol: symbol, TsMs: tsMs, RecvTsMs: tsMs, Payload: payload}
}

func TestMerge_JoinsKindsWithinOneSecondIntoOneFeatureRow(t *testing.T) {
	rows := make(chan reader.RawRow, 8)
	rows <- row(reader.KindOrderbook, "BTCUSDT", 1000, map[string]interface{}{"mid": 100.0, "best_bid": 99.9, "best_ask": 100.1, "spread_bps": 2.0})
	rows <- row(reader.KindOFI, "BTCUSDT", 1000, map[string]interface{}{"ofi_z": 1.5})
	rows <- row(reader.KindCVD, "BTCUSDT", 1000, map[string]interface{}{"z_cvd": -0.5})
	rows <- row(reader.KindOrderbook, "BTCUSDT", 2000, map[string]interface{}{"mid": 101.0, "best_bid": 100.9, "best_ask": 101.1, "spread_bps": 2.0})
	close(rows)

	out, errc := Merge(context.Background(), rows, testAligner(), "UTC", 0)

	var got []feature.FeatureRow
	for r := range out {
		got = append(got, r)
	}
	require.NoError(t, <-errc)
	require.Len(t, got, 2, "second 1000 (all three kinds) and second 2000, flushed at channel close")
	assert.Equal(t, 100.0, got[0].Mid)
	assert.Equal(t, 1.5, got[0].ZOFI)
	assert.Equal(t, -0.5, got[0].ZCVD)
	assert.Equal(t, 101.0, got[1].Mid)
}

func TestMerge_HandlesAlreadyJoinedLiveRowInOneShot(t *testing.T) {
	rows := make(chan reader.RawRow, 2)
	rows <- row(reader.KindFusion, "BTCUSDT", 1000, map[string]interface{}{
		"mid": 100.0, "best_bid": 99.9, "best_ask": 100.1, "spread_bps": 2.0,
		"ofi_z": 1.2, "z_cvd": -0.8, "score": 0.4,
	})
	close(rows)

	out, errc := Merge(context.Background(), rows, testAligner(), "UTC", 0)

	var got []feature.FeatureRow
	for r := range out {
		got = append(got, r)
	}
	require.NoError(t, <-errc)
	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Mid)
	assert.Equal(t, 1.2, got[0].ZOFI)
	assert.Equal(t, -0.8, got[0].ZCVD)
	assert.Equal(t, 0.4, got[0].FusionScore)
}

func TestMerge_FillsGapSecondsBetweenObservations(t *testing.T) {
	rows := make(chan reader.RawRow, 8)
	rows <- row(reader.KindOrderbook, "ETHUSDT", 1000, map[string]interface{}{"mid": 100.0, "best_bid": 99.9, "best_ask": 100.1, "spread_bps": 2.0})
	rows <- row(reader.KindOrderbook, "ETHUSDT", 4000, map[string]interface{}{"mid": 100.0, "best_bid": 99.9, "best_ask": 100.1, "spread_bps": 2.0})
	rows <- row(reader.KindOrderbook, "ETHUSDT", 5000, map[string]interface{}{"mid": 100.0, "best_bid": 99.9, "best_ask": 100.1, "spread_bps": 2.0})
	close(rows)

	out, errc := Merge(context.Background(), rows, testAligner(), "UTC", 0)

	var got []feature.FeatureRow
	for r := range out {
		got = append(got, r)
	}
	require.NoError(t, <-errc)
	require.Len(t, got, 5, "1000 real, 2000+3000 gap-filled, 4000 and 5000 real")
	assert.False(t, got[0].IsGapSecond)
	assert.True(t, got[1].IsGapSecond, "second 2000 has no observation")
	assert.True(t, got[2].IsGapSecond, "second 3000 has no observation")
	assert.False(t, got[3].IsGapSecond)
	assert.False(t, got[4].IsGapSecond)
}
