// Package ratelimit caps how often a key may be used: at most Max calls in
// any Period. Redis backs a limit shared across replicas; Window keeps the
// same strict window in process; Local is a cheaper approximate token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more call for key is allowed now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config is the window shape.
type Config struct {
	Max    int
	Period time.Duration
}

// DefaultConfig allows 5 calls per minute.
func DefaultConfig() Config {
	return Config{Max: 5, Period: 60 * time.Second}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Max <= 0 {
		c.Max = d.Max
	}
	if c.Period <= 0 {
		c.Period = d.Period
	}
	return c
}

// #region local
// Local is an in-process token bucket per key: bursts of up to Max calls,
// refilled at Max per Period. The bound is approximate: a drained bucket
// refills one call every Period/Max, so up to 2*Max-1 calls can land in one
// trailing Period. Use Window for a strict limit.
type Local struct {
	config Config
	mu     sync.Mutex
	keys   map[string]*rate.Limiter
}

// NewLocal creates an in-process limiter.
func NewLocal(config Config) *Local {
	return &Local{config: config.normalized(), keys: make(map[string]*rate.Limiter)}
}

// Allow implements Limiter. It never returns an error.
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	lim, ok := l.keys[key]
	if !ok {
		every := rate.Every(l.config.Period / time.Duration(l.config.Max))
		lim = rate.NewLimiter(every, l.config.Max)
		l.keys[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow(), nil
}
// #endregion local
