package signal

import "errors"

// ErrContractViolation is the sentinel for the ContractViolation error
// kind (spec section 7): fatal, never recovered, reserved for a signal
// that violates the confirm=true => gating=1 && decision_code=OK
// invariant. Ordinary gating rejections never produce this error — they
// are confirm=false signals, not errors (spec section 7, Propagation
// policy).
var ErrContractViolation = errors.New("signal: contract violation")
