package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
)

func TestStaticSlippage(t *testing.T) {
	s := StaticSlippage{Bps: 2.5}
	assert.Equal(t, 2.5, s.SlippageBps(feature.ScenarioActiveHigh, 100))
}

func TestPiecewiseSlippage(t *testing.T) {
	s := NewPiecewiseSlippage(config.SlippagePiecewiseConfig{
		SpreadBaseMultiplier: 0.5,
		ScenarioMultipliers:  map[string]float64{"A_H": 2.0},
	})
	assert.Equal(t, 10.0, s.SlippageBps(feature.ScenarioActiveHigh, 10))
	assert.Equal(t, 5.0, s.SlippageBps(feature.ScenarioQuietLow, 10), "unconfigured scenario falls back to 1.0 multiplier")
}

func TestNewSlippageModel_Dispatch(t *testing.T) {
	cfg := config.Defaults().Backtest
	cfg.SlippageModel = "static"
	_, ok := NewSlippageModel(cfg).(StaticSlippage)
	assert.True(t, ok)

	cfg.SlippageModel = "piecewise"
	_, ok = NewSlippageModel(cfg).(PiecewiseSlippage)
	assert.True(t, ok)
}
