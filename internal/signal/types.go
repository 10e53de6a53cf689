// Package signal implements the Signal Core (C4): a per-symbol, bounded-
// state scoring/gating/confirmation state machine. It is the only
// component allowed to mutate per-symbol signal state (spec section 3,
// Ownership); callers reach it exclusively through Core.Evaluate, never
// by touching feature files directly — there is no code path from this
// package back to the Reader or Aligner.
package signal

// SideHint is the proposed trade direction.
type SideHint string

const (
	SideBuy  SideHint = "buy"
	SideSell SideHint = "sell"
	SideFlat SideHint = "flat"
)

// DecisionCode is the categorical reason for the final confirm/reject
// decision. OK iff Confirm is true.
type DecisionCode string

const (
	DecisionOK               DecisionCode = "OK"
	DecisionFailGating       DecisionCode = "FAIL_GATING"
	DecisionFailCooldown     DecisionCode = "FAIL_COOLDOWN"
	DecisionFailExpired      DecisionCode = "FAIL_EXPIRED"
	DecisionFailWarmup       DecisionCode = "FAIL_WARMUP"
	DecisionFailSpread       DecisionCode = "FAIL_SPREAD"
	DecisionFailLag          DecisionCode = "FAIL_LAG"
	DecisionFailConsistency  DecisionCode = "FAIL_CONSISTENCY"
	DecisionFailWeak         DecisionCode = "FAIL_WEAK"
	DecisionFailDedupe       DecisionCode = "FAIL_DEDUPE"
	DecisionFailFlipRearm    DecisionCode = "FAIL_FLIP_REARM"
	DecisionFailConsecutive DecisionCode = "FAIL_CONSECUTIVE"
)

// SchemaVersion is the wire schema tag stamped on every emitted Signal.
const SchemaVersion = "signal/v2"

// Signal is the v2 wire record emitted by the Signal Core for every
// FeatureRow it consumes, confirmed or not (spec section 3, "Emission").
type Signal struct {
	SchemaVersion  string                 `json:"schema_version"`
	TsMs           int64                  `json:"ts_ms"`
	Symbol         string                 `json:"symbol"`
	SignalID       string                 `json:"signal_id"`
	RunID          string                 `json:"run_id"`
	Seq            int64                  `json:"seq"`
	SideHint       SideHint               `json:"side_hint"`
	Score          float64                `json:"score"`
	Regime         string                 `json:"regime"`
	DivType        string                 `json:"div_type"`
	Gating         int                    `json:"gating"`
	Confirm        bool                   `json:"confirm"`
	CooldownMs     int64                  `json:"cooldown_ms"`
	ExpiryMs       int64                  `json:"expiry_ms"`
	DecisionCode   DecisionCode           `json:"decision_code"`
	DecisionReason string                 `json:"decision_reason"`
	ConfigHash     string                 `json:"config_hash"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

// SatisfiesContract implements the hard contract (spec section 3, "C"):
// confirm=true implies gating=1 and decision_code=OK.
func (s Signal) SatisfiesContract() bool {
	if s.Confirm && (s.Gating != 1 || s.DecisionCode != DecisionOK) {
		return false
	}
	return true
}

// SOFT gating reasons may be overridden by the downstream executor's
// gating_mode; HARD reasons are never actionable regardless of mode
// (spec section 4.4, "Soft vs hard gating policy").
var SoftReasons = map[DecisionCode]bool{
	DecisionFailWeak:        true,
	DecisionFailConsistency: true,
}

var HardReasons = map[DecisionCode]bool{
	DecisionFailSpread:      true,
	DecisionFailLag:         true,
	DecisionFailWarmup:      true,
	DecisionFailCooldown:    true,
	DecisionFailDedupe:      true,
	DecisionFailFlipRearm:   true,
	DecisionFailConsecutive: true,
	DecisionFailExpired:     true,
}

// GatingMode controls what the downstream executor is allowed to act on.
// It never affects what the Signal Core stamps into the record.
type GatingMode string

const (
	GatingStrict      GatingMode = "strict"
	GatingIgnoreSoft  GatingMode = "ignore_soft"
	GatingIgnoreAll   GatingMode = "ignore_all"
)

// Actionable reports whether a consumer operating under mode may treat
// this signal as confirmed, independent of the Confirm field the Signal
// Core actually stamped. A contract-violating signal is never actionable.
func (s Signal) Actionable(mode GatingMode) bool {
	if !s.SatisfiesContract() {
		return false
	}
	if s.Confirm {
		return true
	}
	switch mode {
	case GatingIgnoreAll:
		return !HardReasons[s.DecisionCode]
	case GatingIgnoreSoft:
		return SoftReasons[s.DecisionCode]
	default:
		return false
	}
}
