// Package feature implements the Aligner (C2) and Feature Normalizer (C3):
// the per-second canonical feature row and the join/fill/tag/rename logic
// that produces it from raw price+orderbook observations.
package feature

import "fmt"

// Scenario2x2 is the discrete Active/Quiet x High/Low volatility label.
type Scenario2x2 string

const (
	ScenarioActiveHigh Scenario2x2 = "A_H"
	ScenarioActiveLow  Scenario2x2 = "A_L"
	ScenarioQuietHigh  Scenario2x2 = "Q_H"
	ScenarioQuietLow   Scenario2x2 = "Q_L"
)

// RawObservation is one price/orderbook sample inside a one-second bucket,
// using the legacy field names the upstream harvester still emits
// (ofi_z/cvd_z, split lag_ms_price/lag_ms_orderbook).
type RawObservation struct {
	Symbol           string
	TsMs             int64
	Mid              float64
	BestBid          float64
	BestAsk          float64
	SpreadBps        float64
	OfiZ             float64
	CvdZ             float64
	FusionScore      float64
	LagMsPrice       int64
	LagMsOrderbook   int64
	SubFeedsExpected int
	SubFeedsPresent  int
}

// AlignedRow is the Aligner's (C2) output: one row per (symbol, second),
// still carrying legacy field names and possibly-missing quality tags.
// The Feature Normalizer (C3) turns this into a canonical FeatureRow.
type AlignedRow struct {
	Symbol      string
	TsMs        int64
	Mid         float64
	BestBid     float64
	BestAsk     float64
	SpreadBps   float64
	OfiZ        float64
	CvdZ        float64
	FusionScore float64
	Return1s    float64
	LagMsPrice  int64
	LagMsOrderbook int64
	IsGapSecond bool
	Consistency *float64 // nil when no sub-feed accounting is available
	Warmup      *bool
	Scenario    Scenario2x2
	BusinessDate string
}

// FeatureRow is the canonical per-(symbol,second) record that feeds the
// Signal Core (C4). Field names match the wire contract in spec section 3.
type FeatureRow struct {
	Symbol      string      `json:"symbol"`
	TsMs        int64       `json:"ts_ms"`
	Mid         float64     `json:"mid"`
	BestBid     float64     `json:"best_bid"`
	BestAsk     float64     `json:"best_ask"`
	SpreadBps   float64     `json:"spread_bps"`
	ZOFI        float64     `json:"z_ofi"`
	ZCVD        float64     `json:"z_cvd"`
	FusionScore float64     `json:"fusion_score"`
	Return1s    float64     `json:"return_1s"`
	LagSec      float64     `json:"lag_sec"`
	IsGapSecond bool        `json:"is_gap_second"`
	Consistency float64     `json:"consistency"`
	Warmup      bool        `json:"warmup"`
	Scenario2x2 Scenario2x2 `json:"scenario_2x2"`
	BusinessDate string     `json:"business_date"`
}

// Validate enforces the data-model invariants: best_bid <= mid <= best_ask
// and spread_bps >= 0. ts_ms monotonicity is enforced by the Aligner across
// rows, not by a single row in isolation.
func (r FeatureRow) Validate() error {
	if !(r.BestBid <= r.Mid && r.Mid <= r.BestAsk) {
		return fmt.Errorf("feature: invariant violated for %s@%d: best_bid=%v mid=%v best_ask=%v", r.Symbol, r.TsMs, r.BestBid, r.Mid, r.BestAsk)
	}
	if r.SpreadBps < 0 {
		return fmt.Errorf("feature: invariant violated for %s@%d: spread_bps=%v < 0", r.Symbol, r.TsMs, r.SpreadBps)
	}
	return nil
}
