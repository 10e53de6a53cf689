package feeder

import (
	"time"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
)

// session buckets a UTC timestamp into the coarse trading session the
// downstream cost model keys on. Spec section 4.6 names "session" as part
// of _feature_data's scenario context but does not define its boundaries;
// this heuristic (documented in DESIGN.md as an Open Question resolution)
// uses the conventional UTC session handoffs rather than any exchange-
// specific calendar, since the upstream feed is not tied to one venue.
func session(tsMs int64) string {
	hour := time.UnixMilli(tsMs).UTC().Hour()
	switch {
	case hour < 8:
		return "asia"
	case hour < 16:
		return "europe"
	default:
		return "us"
	}
}

// feeTier buckets a scenario's configured maker probability into a coarse
// label the cost model can key on without re-deriving the full per-
// scenario probability table. Another Open Question resolution: the spec
// names fee_tier as a _feature_data field but leaves its derivation open.
func feeTier(scenario feature.Scenario2x2, probs config.ScenarioProbs) string {
	p := scenarioProb(scenario, probs)
	switch {
	case p >= 0.6:
		return "high_maker"
	case p >= 0.3:
		return "mixed"
	default:
		return "low_maker"
	}
}

func scenarioProb(scenario feature.Scenario2x2, probs config.ScenarioProbs) float64 {
	switch scenario {
	case feature.ScenarioQuietLow:
		return probs.QL
	case feature.ScenarioActiveLow:
		return probs.AL
	case feature.ScenarioActiveHigh:
		return probs.AH
	case feature.ScenarioQuietHigh:
		return probs.QH
	default:
		return probs.Default
	}
}

// volBps is the _feature_data volatility proxy: FeatureRow carries no
// separate volatility field, and return_1s is already expressed in bps
// (feature.Normalize), so |return_1s| is the natural stand-in rather than
// introducing a second volatility estimator the rest of the pipeline never
// computes.
func volBps(row feature.FeatureRow) float64 {
	if row.Return1s < 0 {
		return -row.Return1s
	}
	return row.Return1s
}

// buildFeatureData assembles the _feature_data payload attached to every
// emitted Signal (spec section 4.6).
func buildFeatureData(row feature.FeatureRow, cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"spread_bps":   row.SpreadBps,
		"vol_bps":      volBps(row),
		"scenario_2x2": string(row.Scenario2x2),
		"fee_tier":     feeTier(row.Scenario2x2, cfg.Backtest.FeeMakerTaker.ScenarioProbs),
		"session":      session(row.TsMs),
		"return_1s":    row.Return1s,
	}
}
