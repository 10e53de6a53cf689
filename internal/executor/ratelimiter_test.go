package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/metrics"
)

func limiterCfg() config.AdapterConfig {
	cfg := config.AdapterConfig{}
	cfg.RateLimit.Place = config.RateLimitConfig{RPS: 1, Burst: 1}
	cfg.RateLimit.Cancel = config.RateLimitConfig{RPS: 5, Burst: 5}
	return cfg
}

func TestActionLimiter_RejectsOverBurst(t *testing.T) {
	al := NewActionLimiter(limiterCfg(), nil)
	assert.True(t, al.Allow("place"), "first request consumes the single burst token")
	assert.False(t, al.Allow("place"), "second immediate request exceeds burst=1")
}

func TestActionLimiter_IndependentPerAction(t *testing.T) {
	al := NewActionLimiter(limiterCfg(), nil)
	assert.True(t, al.Allow("place"))
	assert.True(t, al.Allow("cancel"), "cancel has its own bucket, unaffected by place")
}

func TestActionLimiter_UnconfiguredActionDefaultsUnrestricted(t *testing.T) {
	al := NewActionLimiter(limiterCfg(), nil)
	for i := 0; i < 5; i++ {
		assert.True(t, al.Allow("unknown"))
	}
}

func TestActionLimiter_RegistersAgainstSharedRegistryWithoutPanicking(t *testing.T) {
	reg := metrics.Default()
	assert.NotPanics(t, func() {
		NewActionLimiter(limiterCfg(), reg)
	})
}
