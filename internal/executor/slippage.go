package executor

import (
	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
)

// SlippageModel prices the execution cost of one fill in bps (spec
// section 4.7, "Slippage").
type SlippageModel interface {
	SlippageBps(scenario feature.Scenario2x2, spreadBps float64) float64
}

// StaticSlippage applies a flat bps cost regardless of scenario or
// spread (slippage_model=static).
type StaticSlippage struct {
	Bps float64
}

// SlippageBps returns the configured flat rate.
func (s StaticSlippage) SlippageBps(feature.Scenario2x2, float64) float64 {
	return s.Bps
}

// PiecewiseSlippage scales the observed spread by a scenario-keyed
// multiplier and a base multiplier (slippage_model=piecewise): wider
// scenario multipliers price in the extra cost of crossing a book that is
// more likely to move against the order before it fills.
type PiecewiseSlippage struct {
	cfg config.SlippagePiecewiseConfig
}

// NewPiecewiseSlippage constructs a piecewise slippage model from the
// resolved config section.
func NewPiecewiseSlippage(cfg config.SlippagePiecewiseConfig) PiecewiseSlippage {
	return PiecewiseSlippage{cfg: cfg}
}

// SlippageBps returns spreadBps * base_multiplier * scenario_multiplier,
// falling back to a 1.0 scenario multiplier when the scenario has no
// configured entry.
func (s PiecewiseSlippage) SlippageBps(scenario feature.Scenario2x2, spreadBps float64) float64 {
	mult, ok := s.cfg.ScenarioMultipliers[string(scenario)]
	if !ok {
		mult = 1.0
	}
	return spreadBps * s.cfg.SpreadBaseMultiplier * mult
}

// NewSlippageModel constructs the configured slippage model (spec section
// 4.7, slippage_model ∈ {static, piecewise}).
func NewSlippageModel(cfg config.BacktestConfig) SlippageModel {
	if cfg.SlippageModel == "piecewise" {
		return NewPiecewiseSlippage(cfg.SlippagePiecewise)
	}
	return StaticSlippage{Bps: cfg.SlippageBps}
}
