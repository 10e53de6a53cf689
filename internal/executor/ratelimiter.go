package executor

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/metrics"
)

// ActionLimiter is a per-action token bucket set, generalized from the
// teacher's per-host internal/net/ratelimit.Limiter: instead of keying on
// remote host, it keys on the Broker Adapter action ("place", "cancel")
// since each carries its own configured rps/burst (spec section 4.8).
type ActionLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	reg      *metrics.Registry
}

// NewActionLimiter constructs the place/cancel token buckets from adapter
// config and publishes their configured rate to
// executor_current_rate_limit immediately, so the gauge reflects
// configuration even before the first request.
func NewActionLimiter(cfg config.AdapterConfig, reg *metrics.Registry) *ActionLimiter {
	al := &ActionLimiter{
		limiters: make(map[string]*rate.Limiter),
		reg:      reg,
	}
	al.set("place", cfg.RateLimit.Place)
	al.set("cancel", cfg.RateLimit.Cancel)
	return al
}

func (a *ActionLimiter) set(action string, rl config.RateLimitConfig) {
	a.mu.Lock()
	a.limiters[action] = rate.NewLimiter(rate.Limit(rl.RPS), rl.Burst)
	a.mu.Unlock()
	if a.reg != nil {
		a.reg.ExecutorCurrentRateLimit.WithLabelValues(action).Set(rl.RPS)
	}
}

func (a *ActionLimiter) getLimiter(action string) *rate.Limiter {
	a.mu.RLock()
	l, ok := a.limiters[action]
	a.mu.RUnlock()
	if ok {
		return l
	}
	// Unconfigured actions fall back to an unrestricted limiter rather
	// than panicking, mirroring the teacher's double-checked-locking
	// getLimiter default-allow path for unseen keys.
	a.mu.Lock()
	defer a.mu.Unlock()
	if l, ok := a.limiters[action]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Inf, 1)
	a.limiters[action] = l
	return l
}

// Allow reports whether action may proceed right now, without blocking.
// Over-limit calls must be rejected, never queued beyond the bucket (spec
// section 4.8) — callers use Allow, not Wait, for that reason.
func (a *ActionLimiter) Allow(action string) bool {
	return a.getLimiter(action).Allow()
}

// Wait blocks until action's bucket admits one token or ctx is done. Used
// only by callers (e.g. backfill tooling) that explicitly want queuing;
// the live submit path always uses Allow.
func (a *ActionLimiter) Wait(ctx context.Context, action string) error {
	return a.getLimiter(action).Wait(ctx)
}
