package signal

// symbolState is the per-symbol bounded state the Signal Core owns
// exclusively (spec section 3, Ownership). It is never shared across
// symbols and never read by any other component.
type symbolState struct {
	seenRows           int
	warmupDone         bool
	lastEmitTs         int64
	haveLastEmit       bool
	cooldownUntil      int64
	lastSideHint       SideHint
	lastAbsScore       float64
	consecutiveSameDir int
}
