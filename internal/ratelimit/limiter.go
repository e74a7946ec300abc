package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/lexdraft/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Policy names.
const (
	PolicyAuth     = "auth"
	PolicyGenerate = "generate"
)

// maxLocalKeys bounds the in-process limiter table.
const maxLocalKeys = 10000

type Policy struct {
	// Rate is tokens per second.
	Rate  float64
	Burst int
}

// Limiter applies named policies per key. It uses the shared redis bucket when
// redis is configured and falls back to in-process limiters otherwise or when
// redis errors.
type Limiter struct {
	log      *zap.Logger
	bucket   *TokenBucket
	policies map[string]Policy

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *Limiter {
	policies := map[string]Policy{}
	if p, ok := perMinute(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst); ok {
		policies[PolicyAuth] = p
	}
	if p, ok := perMinute(cfg.RateLimit.GeneratePerMinute, cfg.RateLimit.GenerateBurst); ok {
		policies[PolicyGenerate] = p
	}
	return newLimiter(bucket, policies, log)
}

func newLimiter(bucket *TokenBucket, policies map[string]Policy, log *zap.Logger) *Limiter {
	return &Limiter{
		log:      log.Named("ratelimit"),
		bucket:   bucket,
		policies: policies,
		local:    make(map[string]*rate.Limiter),
	}
}

// Allow consumes one token for key under policy. Unknown policies always allow.
func (l *Limiter) Allow(ctx context.Context, policy, key string) Result {
	if l == nil {
		return Result{Allowed: true}
	}
	p, ok := l.policies[policy]
	if !ok {
		return Result{Allowed: true}
	}
	key = strings.TrimSpace(key)

	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, fmt.Sprintf("ratelimit:%s:%s", policy, key), p.Rate, p.Burst)
		if err == nil {
			return res
		}
		l.log.Warn("redis rate limit failed, using local limiter",
			zap.String("policy", policy),
			zap.Error(err),
		)
	}
	return l.allowLocal(policy+":"+key, p)
}

func (l *Limiter) allowLocal(key string, p Policy) Result {
	l.mu.Lock()
	lim, ok := l.local[key]
	if !ok {
		if len(l.local) >= maxLocalKeys {
			l.local = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Limit(p.Rate), p.Burst)
		l.local[key] = lim
	}
	l.mu.Unlock()

	if lim.Allow() {
		return Result{Allowed: true, Limit: p.Burst, Remaining: int(lim.Tokens())}
	}
	return Result{
		Allowed:    false,
		Limit:      p.Burst,
		RetryAfter: retryAfter(lim.Tokens(), p.Rate),
	}
}

func perMinute(perMinute, burst int) (Policy, bool) {
	if perMinute <= 0 {
		return Policy{}, false
	}
	if burst <= 0 {
		burst = 1
	}
	return Policy{Rate: float64(perMinute) / float64(time.Minute/time.Second), Burst: burst}, true
}
