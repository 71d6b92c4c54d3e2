package ratelimiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned by Wait while an endpoint is parked after too many
// consecutive failures.
var ErrCircuitOpen = errors.New("ratelimiter: circuit open, endpoint cooling down")

// Config bounds the self-tuning token bucket. Rates are requests per second.
type Config struct {
	InitialRate             float64
	MinRate                 float64
	MaxRate                 float64
	IncreaseFactor          float64
	DecreaseFactor          float64
	Burst                   int
	CircuitBreakerThreshold int
	CooldownDuration        time.Duration
}

func DefaultConfig() Config {
	return Config{
		InitialRate:             10,
		MinRate:                 1,
		MaxRate:                 50,
		IncreaseFactor:          1.1,
		DecreaseFactor:          0.5,
		Burst:                   20,
		CircuitBreakerThreshold: 10,
		CooldownDuration:        300 * time.Second,
	}
}

// AdaptiveLimiter is a token bucket whose rate tunes itself from call
// outcomes: successes push the rate toward MaxRate, failures push it toward
// MinRate, and a run of failures opens the circuit for CooldownDuration.
type AdaptiveLimiter struct {
	mu sync.Mutex

	limiter             *rate.Limiter
	cfg                 Config
	currentRate         float64
	consecutiveFailures int
	cooldownUntil       time.Time
}

func NewAdaptiveLimiter(cfg Config) *AdaptiveLimiter {
	if cfg.InitialRate <= 0 {
		cfg.InitialRate = 1
	}
	if cfg.MinRate <= 0 {
		cfg.MinRate = 1
	}
	if cfg.MaxRate < cfg.MinRate {
		cfg.MaxRate = cfg.MinRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(cfg.InitialRate), cfg.Burst),
		cfg:         cfg,
		currentRate: cfg.InitialRate,
	}
}

// Wait blocks until a token is available. It fails fast with ErrCircuitOpen
// while the breaker is tripped.
func (l *AdaptiveLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.inCooldownLocked() {
		l.mu.Unlock()
		return ErrCircuitOpen
	}
	l.mu.Unlock()

	return l.limiter.Wait(ctx)
}

// TryAcquire attempts to take a token without blocking.
func (l *AdaptiveLimiter) TryAcquire() bool {
	l.mu.Lock()
	if l.inCooldownLocked() {
		l.mu.Unlock()
		return false
	}
	l.mu.Unlock()

	return l.limiter.Allow()
}

// RecordSuccess grows the permitted rate and closes the circuit.
func (l *AdaptiveLimiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecutiveFailures = 0
	l.cooldownUntil = time.Time{}

	if l.cfg.IncreaseFactor > 1 {
		next := l.currentRate * l.cfg.IncreaseFactor
		if next > l.cfg.MaxRate {
			next = l.cfg.MaxRate
		}
		l.setRateLocked(next)
	}
}

// RecordFailure shrinks the permitted rate and, after
// CircuitBreakerThreshold consecutive failures, opens the circuit.
func (l *AdaptiveLimiter) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecutiveFailures++

	if l.cfg.DecreaseFactor > 0 && l.cfg.DecreaseFactor < 1 {
		next := l.currentRate * l.cfg.DecreaseFactor
		if next < l.cfg.MinRate {
			next = l.cfg.MinRate
		}
		l.setRateLocked(next)
	}

	if l.cfg.CircuitBreakerThreshold > 0 &&
		l.consecutiveFailures >= l.cfg.CircuitBreakerThreshold {
		l.cooldownUntil = time.Now().Add(l.cfg.CooldownDuration)
	}
}

// InCooldown reports whether the breaker is currently open.
func (l *AdaptiveLimiter) InCooldown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inCooldownLocked()
}

func (l *AdaptiveLimiter) inCooldownLocked() bool {
	return !l.cooldownUntil.IsZero() && time.Now().Before(l.cooldownUntil)
}

// Rate returns the current permitted rate in requests per second.
func (l *AdaptiveLimiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentRate
}

func (l *AdaptiveLimiter) setRateLocked(rps float64) {
	l.currentRate = rps
	l.limiter.SetLimit(rate.Limit(rps))
}

// Stats is a read-only snapshot of the limiter state.
type Stats struct {
	Rate                float64   `json:"rate"`
	Burst               int       `json:"burst"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CooldownUntil       time.Time `json:"cooldown_until,omitempty"`
	CircuitOpen         bool      `json:"circuit_open"`
}

func (l *AdaptiveLimiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Rate:                l.currentRate,
		Burst:               l.cfg.Burst,
		ConsecutiveFailures: l.consecutiveFailures,
		CooldownUntil:       l.cooldownUntil,
		CircuitOpen:         l.inCooldownLocked(),
	}
}
