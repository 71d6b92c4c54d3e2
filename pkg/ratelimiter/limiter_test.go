package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		InitialRate:             10,
		MinRate:                 1,
		MaxRate:                 50,
		IncreaseFactor:          1.1,
		DecreaseFactor:          0.5,
		Burst:                   20,
		CircuitBreakerThreshold: 3,
		CooldownDuration:        50 * time.Millisecond,
	}
}

func TestRateIncreasesOnSuccess(t *testing.T) {
	l := NewAdaptiveLimiter(testConfig())

	prev := l.Rate()
	for i := 0; i < 10; i++ {
		l.RecordSuccess()
		cur := l.Rate()
		assert.GreaterOrEqual(t, cur, prev, "rate must never decrease on success")
		prev = cur
	}
	assert.Greater(t, l.Rate(), 10.0)
}

func TestRateCappedAtMax(t *testing.T) {
	l := NewAdaptiveLimiter(testConfig())

	for i := 0; i < 100; i++ {
		l.RecordSuccess()
	}
	assert.Equal(t, 50.0, l.Rate())
}

func TestRateDecreasesOnFailure(t *testing.T) {
	l := NewAdaptiveLimiter(testConfig())

	l.RecordFailure()
	assert.Equal(t, 5.0, l.Rate())
	l.RecordFailure()
	assert.Equal(t, 2.5, l.Rate())
}

func TestRateFlooredAtMin(t *testing.T) {
	l := NewAdaptiveLimiter(testConfig())

	for i := 0; i < 2; i++ {
		l.RecordFailure()
	}
	// Interleave a reset so the breaker never opens.
	l.RecordSuccess()
	for i := 0; i < 2; i++ {
		l.RecordFailure()
	}
	assert.GreaterOrEqual(t, l.Rate(), 1.0)
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	l := NewAdaptiveLimiter(testConfig())

	l.RecordFailure()
	l.RecordFailure()
	assert.False(t, l.InCooldown())

	l.RecordFailure()
	assert.True(t, l.InCooldown())

	err := l.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, l.TryAcquire())
}

func TestCircuitClosesAfterCooldown(t *testing.T) {
	l := NewAdaptiveLimiter(testConfig())

	for i := 0; i < 3; i++ {
		l.RecordFailure()
	}
	require.True(t, l.InCooldown())

	time.Sleep(60 * time.Millisecond)
	assert.False(t, l.InCooldown())
	assert.NoError(t, l.Wait(context.Background()))
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	l := NewAdaptiveLimiter(testConfig())

	l.RecordFailure()
	l.RecordFailure()
	l.RecordSuccess()
	l.RecordFailure()
	l.RecordFailure()
	assert.False(t, l.InCooldown(), "streak must reset on success")
}

func TestStatsSnapshot(t *testing.T) {
	l := NewAdaptiveLimiter(testConfig())
	l.RecordFailure()

	s := l.Stats()
	assert.Equal(t, 5.0, s.Rate)
	assert.Equal(t, 20, s.Burst)
	assert.Equal(t, 1, s.ConsecutiveFailures)
	assert.False(t, s.CircuitOpen)
}

func TestConfigSanitized(t *testing.T) {
	l := NewAdaptiveLimiter(Config{})
	assert.Equal(t, 1.0, l.Rate())
	assert.True(t, l.TryAcquire())
}

func TestPooledLimiterPerEndpoint(t *testing.T) {
	p := NewPooledLimiter(testConfig())

	a := p.Get("https://a.example")
	b := p.Get("https://b.example")
	require.NotSame(t, a, b)

	// Failures on one endpoint must not slow the other.
	a.RecordFailure()
	assert.Equal(t, 5.0, a.Rate())
	assert.Equal(t, 10.0, b.Rate())

	assert.Same(t, a, p.Get("https://a.example"))
}
