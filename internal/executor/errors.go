package executor

import "errors"

// Sentinel errors for the Broker Adapter (C8), spec section 4.8. Callers
// distinguish them with errors.Is; live/testnet adapters wrap the
// underlying transport error with %w so the original cause survives.
var (
	// ErrRejected is returned when the exchange (or the backtest adapter's
	// lot/tick/min-notional check) refuses an order outright. Retrying the
	// same order unmodified will not succeed.
	ErrRejected = errors.New("executor: order rejected")

	// ErrExchange covers an exchange-side failure that is not a rejection
	// (5xx, malformed response, matching-engine error). May be transient.
	ErrExchange = errors.New("executor: exchange error")

	// ErrTransient covers network/timeout/rate-limit failures. Safe to
	// retry with backoff.
	ErrTransient = errors.New("executor: transient error")

	// ErrCircuitOpen is returned by the live adapter when its circuit
	// breaker has tripped and is not yet half-open.
	ErrCircuitOpen = errors.New("executor: circuit breaker open")

	// ErrBelowMinNotional is returned when an order's rounded notional
	// falls below the venue's configured minimum.
	ErrBelowMinNotional = errors.New("executor: order below min notional")
)
