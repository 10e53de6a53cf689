package signal

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
)

// Core is the Signal Core (C4): a per-symbol scoring/gating/confirmation
// state machine driven by a monotonically-advancing stream of FeatureRows.
type Core struct {
	cfg        *config.Config
	configHash string
	runID      string
	seq        int64 // atomic, monotonic per run (not per symbol)

	mu    sync.Mutex
	state map[string]*symbolState
}

// NewCore constructs a Signal Core bound to one run's resolved configuration.
func NewCore(cfg *config.Config, runID string) *Core {
	return &Core{
		cfg:        cfg,
		configHash: cfg.Hash(),
		runID:      runID,
		state:      make(map[string]*symbolState),
	}
}

func (c *Core) stateFor(symbol string) *symbolState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.state[symbol]
	if !ok {
		st = &symbolState{}
		c.state[symbol] = st
	}
	return st
}

// Evaluate runs the fixed-order gating pipeline (spec section 4.4) against
// one FeatureRow and returns exactly one Signal: confirmed, or
// confirm=false with the first failing decision_code. Evaluate must be
// called in strictly increasing ts_ms order per symbol; it is not safe to
// call concurrently for the same symbol (the per-symbol sequencing
// guarantee in spec section 5 is the caller's responsibility, typically
// one goroutine per symbol).
func (c *Core) Evaluate(row feature.FeatureRow) (Signal, error) {
	st := c.stateFor(row.Symbol)
	st.seenRows++

	seq := atomic.AddInt64(&c.seq, 1)

	sig := Signal{
		SchemaVersion: SchemaVersion,
		TsMs:          row.TsMs,
		Symbol:        row.Symbol,
		RunID:         c.runID,
		Seq:           seq,
		ConfigHash:    c.configHash,
		Gating:        0,
		Confirm:       false,
		ExpiryMs:      c.cfg.Signal.DedupeMs,
	}
	sig.SignalID = signalID(c.runID, row.TsMs, seq, row.Symbol)

	reject := func(code DecisionCode, reason string) (Signal, error) {
		sig.DecisionCode = code
		sig.DecisionReason = reason
		sig.SideHint = SideFlat
		return sig, nil
	}

	// 1. Warmup
	if row.Warmup || st.seenRows < c.cfg.Signal.WarmupMin {
		return reject(DecisionFailWarmup, fmt.Sprintf("warmup_done=%v seen_rows=%d < warmup_min=%d", !row.Warmup, st.seenRows, c.cfg.Signal.WarmupMin))
	}
	st.warmupDone = true

	// 2. Quality gates
	if row.LagSec > c.cfg.Signal.LagMaxSec {
		return reject(DecisionFailLag, fmt.Sprintf("lag_sec=%.3f > lag_max=%.3f", row.LagSec, c.cfg.Signal.LagMaxSec))
	}
	if row.SpreadBps > c.cfg.Signal.SpreadMaxBps {
		return reject(DecisionFailSpread, fmt.Sprintf("spread_bps=%.3f > spread_max=%.3f", row.SpreadBps, c.cfg.Signal.SpreadMaxBps))
	}
	if row.Consistency < c.cfg.Signal.ConsistencyMin {
		return reject(DecisionFailConsistency, fmt.Sprintf("consistency=%.3f < consistency_min=%.3f", row.Consistency, c.cfg.Signal.ConsistencyMin))
	}

	// 3. Fusion
	score := c.cfg.Components.Fusion.WOFI*row.ZOFI + c.cfg.Components.Fusion.WCVD*row.ZCVD
	sig.Score = score
	sig.DivType = divType(row.ZOFI, row.ZCVD)

	// 4. Side proposal (regime-dependent threshold set)
	thr := c.thresholdsFor(row.Scenario2x2)
	var side SideHint
	switch {
	case score >= thr.Buy:
		side = SideBuy
	case score <= thr.Sell:
		side = SideSell
	default:
		side = SideFlat
	}
	sig.SideHint = side
	sig.Regime = classifyRegime(st, side, score, c.cfg.Signal.WeakSignalThreshold)

	// 5. Weak-signal filter
	if absf(score) < c.cfg.Signal.WeakSignalThreshold {
		return reject(DecisionFailWeak, fmt.Sprintf("|score|=%.4f < weak_signal_threshold=%.4f", absf(score), c.cfg.Signal.WeakSignalThreshold))
	}

	// 6. Dedupe
	if st.haveLastEmit && row.TsMs-st.lastEmitTs < c.cfg.Signal.DedupeMs && side == st.lastSideHint {
		return reject(DecisionFailDedupe, fmt.Sprintf("ts_ms-last_emit_ts=%d < dedupe_ms=%d, side unchanged", row.TsMs-st.lastEmitTs, c.cfg.Signal.DedupeMs))
	}

	// 7. Cooldown
	if row.TsMs < st.cooldownUntil {
		return reject(DecisionFailCooldown, fmt.Sprintf("ts_ms=%d < cooldown_until=%d", row.TsMs, st.cooldownUntil))
	}

	// 8. Flip hysteresis
	if st.haveLastEmit && side != st.lastSideHint && absf(score) < st.lastAbsScore+c.cfg.Components.Fusion.FlipRearmMargin {
		return reject(DecisionFailFlipRearm, fmt.Sprintf("side flip requires |score|>=%.4f, got %.4f", st.lastAbsScore+c.cfg.Components.Fusion.FlipRearmMargin, absf(score)))
	}

	// Update consecutive-same-dir tracking ahead of step 9's check, so the
	// count reflects this row's direction.
	if side == st.lastSideHint && side != SideFlat {
		st.consecutiveSameDir++
	} else {
		st.consecutiveSameDir = 1
	}

	// 9. Consecutive-same-dir: emit but do not confirm (documented open
	// question resolution, see DESIGN.md: emit is kept, matching the
	// "even rejected rows emit a confirm=false signal" rule in 4.4).
	if st.consecutiveSameDir < c.cfg.Signal.MinConsecutiveSameDir {
		st.lastEmitTs = row.TsMs
		st.haveLastEmit = true
		st.lastSideHint = side
		st.lastAbsScore = absf(score)
		return reject(DecisionFailConsecutive, fmt.Sprintf("consecutive_same_dir=%d < min=%d", st.consecutiveSameDir, c.cfg.Signal.MinConsecutiveSameDir))
	}

	// 10. Admit
	sig.Gating = 1
	sig.Confirm = true
	sig.DecisionCode = DecisionOK
	sig.DecisionReason = "all gates passed"

	expectedHoldMs := int64(c.cfg.Components.Fusion.ExpectedHoldSec * 1000)
	cooldownMs := int64(c.cfg.Components.Fusion.AdaptiveCooldownK * float64(expectedHoldMs))
	sig.CooldownMs = cooldownMs

	st.lastEmitTs = row.TsMs
	st.haveLastEmit = true
	st.cooldownUntil = row.TsMs + cooldownMs
	st.lastSideHint = side
	st.lastAbsScore = absf(score)

	if err := sig.checkContract(); err != nil {
		return sig, err
	}
	return sig, nil
}

// checkContract is the defensive, fail-fast assertion the spec requires at
// emit time: confirm=true must imply gating=1, decision_code=OK, and a
// directional side_hint. A violation here is a ContractViolation error,
// the one kind in this package that is never a normal gating outcome.
func (s Signal) checkContract() error {
	if s.Confirm {
		if s.Gating != 1 || s.DecisionCode != DecisionOK {
			return fmt.Errorf("%w: signal_id=%s confirm=true but gating=%d decision_code=%s", ErrContractViolation, s.SignalID, s.Gating, s.DecisionCode)
		}
		if s.SideHint != SideBuy && s.SideHint != SideSell {
			return fmt.Errorf("%w: signal_id=%s confirm=true with side_hint=%s", ErrContractViolation, s.SignalID, s.SideHint)
		}
	}
	return nil
}

func (c *Core) thresholdsFor(scenario feature.Scenario2x2) config.SideThresholds {
	switch scenario {
	case feature.ScenarioActiveHigh, feature.ScenarioActiveLow:
		return c.cfg.Signal.Thresholds.Active
	default:
		return c.cfg.Signal.Thresholds.Quiet
	}
}

func divType(zOFI, zCVD float64) string {
	switch {
	case zOFI > 0 && zCVD < 0:
		return "bearish_divergence"
	case zOFI < 0 && zCVD > 0:
		return "bullish_divergence"
	default:
		return "aligned"
	}
}

// classifyRegime derives the coarse signal-generation mode distinct from
// the 2x2 scenario label (spec glossary): a run of same-direction signals
// reads as trend, a side flip as revert, everything below the weak
// threshold as quiet.
func classifyRegime(st *symbolState, side SideHint, score, weakThreshold float64) string {
	switch {
	case absf(score) < weakThreshold:
		return "quiet"
	case st.haveLastEmit && side != st.lastSideHint && side != SideFlat:
		return "revert"
	case st.consecutiveSameDir >= 2:
		return "trend"
	default:
		return "quiet"
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
