package executor

import (
	"math/rand"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
)

// FeeAccountant prices one fill: it reports the fee rate in bps and
// whether the fill was priced as maker (spec section 4.7, "Fees"). Price
// must be called exactly once per fill — for Bernoulli accounting it
// advances the accountant's private RNG, so a second call for the same
// fill would silently draw a second, different outcome.
type FeeAccountant interface {
	Price(scenario feature.Scenario2x2) (feeBps float64, isMaker bool)
}

// TakerStaticFees is the fee_model=taker_static accountant: every fill is
// taker, at a flat rate.
type TakerStaticFees struct {
	TakerFeeBps float64
}

// Price always reports a taker fill.
func (f TakerStaticFees) Price(feature.Scenario2x2) (float64, bool) {
	return f.TakerFeeBps, false
}

// MakerTakerFees is the fee_model=maker_taker accountant: each fill's
// maker probability is drawn from the per-scenario table, then converted
// to a maker/taker flag by either the threshold or Bernoulli accounting
// mode, and priced at maker_fee_bps*maker_fee_ratio or taker_fee_bps
// accordingly. Bernoulli draws use a dedicated *rand.Rand seeded from
// bernoulli_seed, never math/rand's global source, so concurrent symbols
// never perturb each other's draw sequence (spec section 4.7).
type MakerTakerFees struct {
	cfg         config.FeeMakerTakerConfig
	makerFeeBps float64
	takerFeeBps float64
	rng         *rand.Rand
}

// NewMakerTakerFees constructs a maker/taker accountant. seed should be
// unique per symbol (e.g. SeedForSymbol(cfg.BernoulliSeed, symbol)) so
// that independent per-symbol streams don't correlate despite sharing one
// configured base seed.
func NewMakerTakerFees(cfg config.FeeMakerTakerConfig, makerFeeBps, takerFeeBps float64, seed int64) *MakerTakerFees {
	return &MakerTakerFees{
		cfg:         cfg,
		makerFeeBps: makerFeeBps,
		takerFeeBps: takerFeeBps,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Price draws (or thresholds) the scenario's configured maker probability
// into a maker/taker decision and returns the corresponding fee rate.
func (f *MakerTakerFees) Price(scenario feature.Scenario2x2) (float64, bool) {
	prob := scenarioProb(scenario, f.cfg.ScenarioProbs)

	var isMaker bool
	switch f.cfg.AccountingMode {
	case "bernoulli":
		isMaker = f.rng.Float64() < prob
	default: // "threshold"
		threshold := f.cfg.MakerThreshold
		if threshold == 0 {
			threshold = 0.5
		}
		isMaker = prob > threshold
	}

	if isMaker {
		return f.makerFeeBps * f.cfg.MakerFeeRatio, true
	}
	return f.takerFeeBps, false
}

// scenarioProb looks up the configured maker probability for scenario,
// falling back to ScenarioProbs.Default for anything unrecognized.
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

// SeedForSymbol mixes the configured base seed with symbol (FNV-1a-style)
// to produce a per-symbol Bernoulli seed, so every symbol gets an
// independent but deterministic-given-config draw sequence.
func SeedForSymbol(baseSeed int64, symbol string) int64 {
	h := int64(2166136261)
	for _, c := range symbol {
		h = (h ^ int64(c)) * 16777619
	}
	return baseSeed ^ h
}

// NewFeeAccountant constructs the configured fee model (spec section 4.7,
// fee_model ∈ {taker_static, maker_taker}).
func NewFeeAccountant(cfg config.BacktestConfig, symbol string) FeeAccountant {
	if cfg.FeeModel == "maker_taker" {
		seed := SeedForSymbol(cfg.FeeMakerTaker.BernoulliSeed, symbol)
		return NewMakerTakerFees(cfg.FeeMakerTaker, cfg.MakerFeeBps, cfg.TakerFeeBps, seed)
	}
	return TakerStaticFees{TakerFeeBps: cfg.TakerFeeBps}
}
