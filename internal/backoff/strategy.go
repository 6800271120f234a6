package backoff

import (
	"math/rand"
	"time"
)

// Params carries the knobs shared by every strategy.
type Params struct {
	// Base is the delay before the first retry (attempt 0).
	Base time.Duration
	// Max caps the exponential part of the delay. Jitter is added on top.
	Max time.Duration
	// Multiplier is the growth factor per attempt; values <= 1 fall back to 2.
	Multiplier float64
	// MaxJitter bounds the uniformly random amount added to each delay.
	MaxJitter time.Duration
	// Jitter draws a value in [0, max). Nil uses math/rand.
	Jitter func(max time.Duration) time.Duration
}

// Strategy defines the interface for backoff calculation algorithms.
type Strategy interface {
	// Calculate returns the backoff duration for the given zero-based attempt.
	Calculate(attempt int, p Params) time.Duration
}

// ExponentialJitterStrategy computes min(Base*Multiplier^attempt, Max) plus an
// additive random jitter in [0, MaxJitter). Before jitter the delay never
// decreases as the attempt number grows.
type ExponentialJitterStrategy struct{}

// Calculate implements Strategy.
func (s ExponentialJitterStrategy) Calculate(attempt int, p Params) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	backoff := time.Duration(float64(p.Base) * pow(multiplier(p.Multiplier), attempt))
	if backoff < 0 || backoff > p.Max {
		backoff = p.Max
	}

	return backoff + jitter(p)
}

// DecorrelatedJitterStrategy implements decorrelated jitter as per the AWS
// architecture blog: random_between(base, min(cap, base*3^attempt)).
type DecorrelatedJitterStrategy struct{}

// Calculate implements Strategy.
func (s DecorrelatedJitterStrategy) Calculate(attempt int, p Params) time.Duration {
	if attempt <= 0 {
		return p.Base
	}

	if attempt > 10 {
		attempt = 10
	}

	base := float64(p.Base)
	upper := base * pow(3.0, attempt)

	maxBackoff := float64(p.Max)
	if upper > maxBackoff || upper < 0 {
		upper = maxBackoff
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > p.Max {
		delay = p.Max
	}
	return delay
}

func jitter(p Params) time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	if p.Jitter != nil {
		j := p.Jitter(p.MaxJitter)
		if j < 0 {
			return 0
		}
		if j >= p.MaxJitter {
			return p.MaxJitter - 1
		}
		return j
	}
	return time.Duration(rand.Int63n(int64(p.MaxJitter)))
}

func multiplier(m float64) float64 {
	if m <= 1 {
		return 2.0
	}
	return m
}

// pow calculates base^exponent using integer exponentiation.
func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
