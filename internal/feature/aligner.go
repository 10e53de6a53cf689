package feature

import (
	"fmt"
	"sync"
)

// RegimeConfig configures the two independent threshold axes of the 2x2
// scenario label: Active/Quiet on spread, High/Low on |return_1s|. The two
// axes are deliberately never combined into one scalar (spec 4.2).
type RegimeConfig struct {
	ActiveSpreadThresholdBps float64
	HighVolThresholdBps      float64
}

// AlignerConfig bounds the Aligner's per-symbol behaviour.
type AlignerConfig struct {
	Regime RegimeConfig
}

type symbolState struct {
	lastSecond      int64
	haveLast        bool
	lastMid         float64
	lastSpreadBps   float64
	lastNonGapMid   float64
	haveLastNonGap  bool
	seenRows        int
}

// Aligner joins price+orderbook observations into the canonical per-second
// FeatureRow stream (C2). It is safe for concurrent use across distinct
// symbols: one mutex guards the per-symbol state map, and each symbol's
// state is touched only by calls for that symbol. A symbol's own state is
// not locked, so calls for the same symbol must not run concurrently.
type Aligner struct {
	cfg   AlignerConfig
	mu    sync.Mutex
	state map[string]*symbolState
}

// NewAligner constructs an Aligner with the given regime thresholds.
func NewAligner(cfg AlignerConfig) *Aligner {
	return &Aligner{cfg: cfg, state: make(map[string]*symbolState)}
}

func (a *Aligner) stateFor(symbol string) *symbolState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.state[symbol]
	if !ok {
		st = &symbolState{}
		a.state[symbol] = st
	}
	return st
}

// Observe consumes one raw observation (mid/spread/flow features already
// sampled from within a one-second bucket) and returns the AlignedRow for
// that bucket. Feed observations for a symbol strictly in non-decreasing
// ts_ms order; Observe treats each call as the last-known observation
// within its second.
func (a *Aligner) Observe(obs RawObservation) (AlignedRow, error) {
	second := obs.TsMs / 1000 * 1000
	st := a.stateFor(obs.Symbol)

	if st.haveLast && second < st.lastSecond {
		return AlignedRow{}, fmt.Errorf("feature: aligner: ts_ms went backwards for %s: %d < %d", obs.Symbol, second, st.lastSecond)
	}

	row := AlignedRow{
		Symbol:         obs.Symbol,
		TsMs:           second,
		Mid:            obs.Mid,
		BestBid:        obs.BestBid,
		BestAsk:        obs.BestAsk,
		SpreadBps:      obs.SpreadBps,
		OfiZ:           obs.OfiZ,
		CvdZ:           obs.CvdZ,
		FusionScore:    obs.FusionScore,
		LagMsPrice:     obs.LagMsPrice,
		LagMsOrderbook: obs.LagMsOrderbook,
	}

	if obs.SubFeedsExpected > 0 {
		c := float64(obs.SubFeedsPresent) / float64(obs.SubFeedsExpected)
		row.Consistency = &c
	}

	row.Return1s = 0
	if st.haveLastNonGap && st.lastNonGapMid != 0 {
		row.Return1s = (row.Mid - st.lastNonGapMid) / st.lastNonGapMid * 10000
	}
	st.lastNonGapMid = row.Mid
	st.haveLastNonGap = true

	row.Scenario = a.classify(row.SpreadBps, row.Return1s)

	st.lastSecond = second
	st.haveLast = true
	st.lastMid = row.Mid
	st.lastSpreadBps = row.SpreadBps
	st.seenRows++

	return row, nil
}

// FillGap emits a gap-second row for `second`, copying the last-known-good
// market state forward. Callers invoke this for every bucket the Reader
// produced no observation for, in ascending order, before the next real
// Observe for the same symbol.
func (a *Aligner) FillGap(symbol string, second int64) (AlignedRow, error) {
	st := a.stateFor(symbol)
	if !st.haveLast {
		return AlignedRow{}, fmt.Errorf("feature: aligner: gap-second for %s@%d before any observation", symbol, second)
	}
	if second <= st.lastSecond {
		return AlignedRow{}, fmt.Errorf("feature: aligner: gap-second ts_ms did not advance for %s: %d <= %d", symbol, second, st.lastSecond)
	}

	row := AlignedRow{
		Symbol:      symbol,
		TsMs:        second,
		Mid:         st.lastMid,
		BestBid:     st.lastMid,
		BestAsk:     st.lastMid,
		SpreadBps:   st.lastSpreadBps,
		Return1s:    0,
		IsGapSecond: true,
		Scenario:    a.classify(st.lastSpreadBps, 0),
	}

	st.lastSecond = second
	st.seenRows++
	return row, nil
}

// SeenRows reports how many rows (gap or real) have been produced for a
// symbol so far, used by the Signal Core's warmup gate.
func (a *Aligner) SeenRows(symbol string) int {
	st := a.stateFor(symbol)
	return st.seenRows
}

func (a *Aligner) classify(spreadBps, return1s float64) Scenario2x2 {
	active := spreadBps < a.cfg.Regime.ActiveSpreadThresholdBps
	high := absf(return1s) >= a.cfg.Regime.HighVolThresholdBps
	switch {
	case active && high:
		return ScenarioActiveHigh
	case active && !high:
		return ScenarioActiveLow
	case !active && high:
		return ScenarioQuietHigh
	default:
		return ScenarioQuietLow
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
