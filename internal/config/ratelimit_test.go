package config

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfig_Defaults(t *testing.T) {
    cfg := LoadRateLimitConfig()

    assert.True(t, cfg.Enabled)
    assert.Equal(t, 60, cfg.Capacity)

    // The provider webhook is never throttled: its deliveries can burst
    // past any per-ip budget.
    assert.True(t, cfg.ExemptPaths["/payment/webhook"])
    assert.False(t, cfg.ExemptPaths["/payment/get"])
}

func TestLoadRateLimitConfig_ExemptPathsFromEnv(t *testing.T) {
    t.Setenv("RATE_LIMIT_EXEMPT_PATHS", "/payment/webhook, /healthz")

    cfg := LoadRateLimitConfig()
    assert.True(t, cfg.ExemptPaths["/payment/webhook"])
    assert.True(t, cfg.ExemptPaths["/healthz"])
    assert.False(t, cfg.ExemptPaths[""])
}
