// Package resilience holds the guards placed around every external
// dependency: a token-bucket rate limiter per dependency and a circuit
// breaker for the oracle.
package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// Dependency names used as limiter keys and metric labels.
const (
	DependencyOracle    = "oracle"
	DependencyWorldBank = "world_bank"
	DependencyNews      = "news"
	DependencyHTTP      = "http"
)

// Limiter gates outbound calls to one dependency.
type Limiter interface {
	// Wait blocks until a token is available or ctx is done.
	Wait(ctx context.Context) error
	// Allow takes a token without blocking and reports whether one was available.
	Allow() bool
}

// TokenBucket is a Limiter over golang.org/x/time/rate.
type TokenBucket struct {
	name    string
	limiter *rate.Limiter
}

// NewTokenBucket creates a limiter admitting perSecond calls on average with
// bursts of up to burst. A non-positive perSecond disables limiting.
func NewTokenBucket(name string, perSecond float64, burst int) *TokenBucket {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{name: name, limiter: rate.NewLimiter(limit, burst)}
}

func (b *TokenBucket) Wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, errors.CodeRateLimit, "rate limit wait aborted").WithDetail(b.name)
	}
	return nil
}

func (b *TokenBucket) Allow() bool {
	return b.limiter.Allow()
}

// Name returns the dependency the bucket guards.
func (b *TokenBucket) Name() string { return b.name }

// Unlimited is a Limiter that never blocks.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Allow() bool                    { return true }

// LimiterSet hands out one Limiter per dependency name.
type LimiterSet struct {
	mu       sync.Mutex
	limiters map[string]Limiter
}

// NewLimiterSet returns an empty set.
func NewLimiterSet() *LimiterSet {
	return &LimiterSet{limiters: make(map[string]Limiter)}
}

// Register installs a token bucket for name, replacing any previous one.
func (s *LimiterSet) Register(name string, perSecond float64, burst int) Limiter {
	l := NewTokenBucket(name, perSecond, burst)
	s.mu.Lock()
	s.limiters[name] = l
	s.mu.Unlock()
	return l
}

// Get returns the limiter for name, or Unlimited when none was registered.
func (s *LimiterSet) Get(name string) Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[name]; ok {
		return l
	}
	return Unlimited{}
}
