package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(configs []EndpointConfig) *Limiter {
	return NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 0, // no cleanup goroutine in tests
		EndpointConfigs: configs,
	})
}

func TestLimiter_AllowsWithinBurst(t *testing.T) {
	l := newTestLimiter([]EndpointConfig{
		{Path: "/process", Method: "POST", Limit: 30, Window: time.Hour, Burst: 3},
	})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("1.2.3.4", "/process", "POST")
		assert.True(t, allowed, "request %d should be allowed", i)
		assert.Equal(t, 30, info.Limit)
	}

	allowed, info := l.Allow("1.2.3.4", "/process", "POST")
	assert.False(t, allowed)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l := newTestLimiter([]EndpointConfig{
		{Path: "/process", Method: "POST", Limit: 10, Window: time.Hour, Burst: 1},
	})
	defer l.Stop()

	allowed, _ := l.Allow("1.2.3.4", "/process", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("1.2.3.4", "/process", "POST")
	assert.False(t, allowed)

	// A different client has its own bucket.
	allowed, _ = l.Allow("5.6.7.8", "/process", "POST")
	assert.True(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer l.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/process", "POST")
		assert.True(t, allowed)
	}
}

func TestLimiter_HealthUnlimited(t *testing.T) {
	l := newTestLimiter(nil)
	defer l.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/health", "GET")
		assert.True(t, allowed)
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	match := MatchEndpoint("/process", "POST", configs)
	assert.NotNil(t, match)
	assert.Equal(t, 30, match.Limit)

	// Prefix match for parameterized paths.
	match = MatchEndpoint("/download/some-token", "GET", configs)
	assert.NotNil(t, match)
	assert.Equal(t, "/download/", match.Path)

	match = MatchEndpoint("/cancel/abc-123", "POST", configs)
	assert.NotNil(t, match)

	// No match for unknown routes.
	assert.Nil(t, MatchEndpoint("/status/abc", "GET", configs))

	// Health is special-cased to unlimited.
	match = MatchEndpoint("/health", "GET", configs)
	assert.NotNil(t, match)
	assert.Equal(t, 0, match.Limit)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1000, cfg.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.DefaultWindow)
	assert.NotEmpty(t, cfg.EndpointConfigs)
}
