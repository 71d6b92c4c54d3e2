package ratelimiter

import (
	"context"
	"sync"
)

// PooledLimiter manages one AdaptiveLimiter per endpoint URL, so a misbehaving
// node only throttles itself.
type PooledLimiter struct {
	limiters map[string]*AdaptiveLimiter
	mutex    sync.RWMutex
	cfg      Config
}

func NewPooledLimiter(cfg Config) *PooledLimiter {
	return &PooledLimiter{
		limiters: make(map[string]*AdaptiveLimiter),
		cfg:      cfg,
	}
}

// Wait waits for permission to call the given endpoint.
func (p *PooledLimiter) Wait(ctx context.Context, endpoint string) error {
	return p.Get(endpoint).Wait(ctx)
}

// Get returns the limiter for an endpoint, creating it on first use.
func (p *PooledLimiter) Get(endpoint string) *AdaptiveLimiter {
	p.mutex.RLock()
	limiter, exists := p.limiters[endpoint]
	p.mutex.RUnlock()

	if exists {
		return limiter
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := p.limiters[endpoint]; exists {
		return limiter
	}

	limiter = NewAdaptiveLimiter(p.cfg)
	p.limiters[endpoint] = limiter
	return limiter
}

// GetStats returns statistics for all endpoints seen so far.
func (p *PooledLimiter) GetStats() map[string]Stats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	stats := make(map[string]Stats, len(p.limiters))
	for endpoint, limiter := range p.limiters {
		stats[endpoint] = limiter.Stats()
	}
	return stats
}

// Close drops all limiters.
func (p *PooledLimiter) Close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.limiters = make(map[string]*AdaptiveLimiter)
}
