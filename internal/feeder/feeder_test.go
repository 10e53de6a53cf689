package feeder

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/signal"
)

var errSinkUnreachable = errors.New("sink unreachable")

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Signal.WarmupMin = 0
	cfg.Signal.WeakSignalThreshold = 0.1
	cfg.Signal.MinConsecutiveSameDir = 1
	require.NoError(t, cfg.Validate())
	return cfg
}

func row(symbol string, tsMs int64, zOFI float64) feature.FeatureRow {
	return feature.FeatureRow{
		Symbol:      symbol,
		TsMs:        tsMs,
		Mid:         100,
		BestBid:     99.9,
		BestAsk:     100.1,
		SpreadBps:   20,
		ZOFI:        zOFI,
		ZCVD:        0,
		Consistency: 1.0,
		Scenario2x2: feature.ScenarioActiveHigh,
		Return1s:    3.5,
		BusinessDate: "2026-07-30",
	}
}

type stubSink struct {
	written []signal.Signal
	failOn  int // fail on the Nth write (1-indexed); 0 never fails
}

func (s *stubSink) Write(_ context.Context, sig signal.Signal) error {
	s.written = append(s.written, sig)
	if s.failOn != 0 && len(s.written) == s.failOn {
		return errSinkUnreachable
	}
	return nil
}

func TestResolveRunIDUsesEnvWhenSet(t *testing.T) {
	os.Setenv("RUN_ID", "fixed-run-id")
	defer os.Unsetenv("RUN_ID")
	assert.Equal(t, "fixed-run-id", ResolveRunID())
}

func TestResolveRunIDGeneratesUUIDWhenUnset(t *testing.T) {
	os.Unsetenv("RUN_ID")
	id1 := ResolveRunID()
	id2 := ResolveRunID()
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2, "each unset resolution mints a fresh uuid")
}

func TestFeederAttachesFeatureDataAndWritesToSink(t *testing.T) {
	cfg := testConfig(t)
	core := signal.NewCore(cfg, "run-1")
	sink := &stubSink{}
	clock := NewSimClock()
	f := New(cfg, core, sink, clock, "run-1")

	rows := make(chan feature.FeatureRow, 1)
	rows <- row("BTCUSDT", 1_000_000, 3.0)
	close(rows)

	out, errc := f.Run(context.Background(), rows)
	var got []signal.Signal
	for sig := range out {
		got = append(got, sig)
	}
	require.NoError(t, <-errc)
	require.Len(t, got, 1)
	require.Len(t, sink.written, 1)

	fd, ok := got[0].Meta["_feature_data"].(map[string]interface{})
	require.True(t, ok, "_feature_data must be attached")
	assert.Equal(t, 20.0, fd["spread_bps"])
	assert.Equal(t, "A_H", fd["scenario_2x2"])
	assert.Contains(t, fd, "fee_tier")
	assert.Contains(t, fd, "session")
	assert.Equal(t, 3.5, fd["return_1s"])
}

func TestFeederAdvancesSimClock(t *testing.T) {
	cfg := testConfig(t)
	core := signal.NewCore(cfg, "run-1")
	sink := &stubSink{}
	clock := NewSimClock()
	f := New(cfg, core, sink, clock, "run-1")

	rows := make(chan feature.FeatureRow, 2)
	rows <- row("BTCUSDT", 1_000_000, 3.0)
	rows <- row("BTCUSDT", 1_002_000, 3.0)
	close(rows)

	out, errc := f.Run(context.Background(), rows)
	for range out {
	}
	require.NoError(t, <-errc)
	assert.Equal(t, int64(1_002_000), clock.NowMs())
}

func TestFeederSinkErrorIsFatal(t *testing.T) {
	cfg := testConfig(t)
	core := signal.NewCore(cfg, "run-1")
	sink := &stubSink{failOn: 1}
	f := New(cfg, core, sink, NewSimClock(), "run-1")

	rows := make(chan feature.FeatureRow, 1)
	rows <- row("BTCUSDT", 1_000_000, 3.0)
	close(rows)

	out, errc := f.Run(context.Background(), rows)
	for range out {
	}
	err := <-errc
	require.Error(t, err)
}

func TestEffectiveParamsIncludesConfigHash(t *testing.T) {
	cfg := testConfig(t)
	params := EffectiveParams(cfg)
	assert.Equal(t, cfg.Hash(), params["config_hash"])
	assert.Equal(t, cfg.Signal.WeakSignalThreshold, params["signal.weak_signal_threshold"])
}
