package entitlement

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy calculates the delay before the next conflict retry.
// Implementations must be safe for concurrent use.
type BackoffStrategy interface {
	// NextInterval returns the delay for the given retry attempt, starting at 1.
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows the delay geometrically with optional jitter.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NextInterval returns min(InitialInterval * Multiplier^(attempt-1) * (1 ± JitterFactor), MaxInterval).
func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial == 0 {
		initial = 5 * time.Millisecond
	}
	maxInterval := e.MaxInterval
	if maxInterval == 0 {
		maxInterval = 250 * time.Millisecond
	}
	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	if interval > float64(maxInterval) {
		interval = float64(maxInterval)
	}
	return time.Duration(interval)
}

// NoBackoff retries immediately. Useful in tests.
type NoBackoff struct{}

func (NoBackoff) NextInterval(int) time.Duration { return 0 }

// DefaultBackoff is tuned for contention between concurrent webhook deliveries for one user.
func DefaultBackoff() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     250 * time.Millisecond,
		Multiplier:      2,
		JitterFactor:    0.2,
	}
}
