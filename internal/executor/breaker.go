package executor

import (
	"time"

	cb "github.com/sony/gobreaker"
)

// newTransportBreaker wraps the live adapter's outbound transport in a
// circuit breaker (spec section 4.8, "Resilience"): it trips after 3
// consecutive failures, or after a 20+ request rolling window sees a
// failure rate above 5%, and stays open for 60s before probing again.
// Mirrors infra/breakers/breakers.go, generalized to name the breaker
// after the adapter instance rather than a fixed package-level name.
func newTransportBreaker(name string) *cb.CircuitBreaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return cb.NewCircuitBreaker(st)
}

// breakerStateGauge maps gobreaker's state to the spec's documented gauge
// encoding (0=closed, 1=half-open, 2=open).
func breakerStateGauge(s cb.State) float64 {
	switch s {
	case cb.StateHalfOpen:
		return 1
	case cb.StateOpen:
		return 2
	default:
		return 0
	}
}
