package ratelimit

import (
	"context"
	"testing"

	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalLimiterEnforcesBurst(t *testing.T) {
	l := newLimiter(nil, map[string]Policy{PolicyAuth: {Rate: 0.001, Burst: 2}}, zap.NewNop())
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, PolicyAuth, "1.2.3.4").Allowed)
	assert.True(t, l.Allow(ctx, PolicyAuth, "1.2.3.4").Allowed)

	res := l.Allow(ctx, PolicyAuth, "1.2.3.4")
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	assert.True(t, l.Allow(ctx, PolicyAuth, "5.6.7.8").Allowed, "keys are independent")
}

func TestUnknownPolicyAllows(t *testing.T) {
	l := newLimiter(nil, map[string]Policy{}, zap.NewNop())
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(context.Background(), PolicyGenerate, "u").Allowed)
	}

	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow(context.Background(), PolicyAuth, "u").Allowed)
}

func TestNewLimiterFromConfig(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{AuthPerMinute: 60, AuthBurst: 1}}
	l := NewLimiter(cfg, nil, zap.NewNop())

	require.Contains(t, l.policies, PolicyAuth)
	assert.InDelta(t, 1.0, l.policies[PolicyAuth].Rate, 0.0001)
	assert.NotContains(t, l.policies, PolicyGenerate)
}

func TestNilLockerRunsUnlocked(t *testing.T) {
	var locker *Locker
	called := false
	err := locker.WithLock(context.Background(), "settle:cs_1", 0, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
