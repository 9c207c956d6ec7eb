package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	// DefaultBase is the delay before the first reconnect.
	DefaultBase = time.Second
	// DefaultCap bounds the exponential part of the delay.
	DefaultCap = 30 * time.Second
	// DefaultJitter is the maximum jitter as a fraction of the capped delay.
	DefaultJitter = 0.1
)

// Backoff computes jittered exponential reconnect delays.
type Backoff struct {
	// Base is the delay for attempt zero before jitter.
	Base time.Duration
	// Cap bounds base*2^attempt. Jitter may add up to Jitter*Cap on top.
	Cap time.Duration
	// Jitter is the upper bound of the random addition as a fraction (0.0 to 1.0).
	Jitter float64
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultBackoff returns the 1s base, 30s cap, 10% jitter policy.
func DefaultBackoff() Backoff {
	return Backoff{Base: DefaultBase, Cap: DefaultCap, Jitter: DefaultJitter}
}

// Delay returns the wait before reconnect attempt n (zero-based).
// Negative attempts are treated as zero.
func (b Backoff) Delay(attempt int) time.Duration {
	base, ceiling := b.Base, b.Cap
	if base <= 0 {
		base = DefaultBase
	}
	if ceiling <= 0 {
		ceiling = DefaultCap
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(ceiling)
	// 2^62 overflows any useful duration; skip the multiplication entirely.
	if attempt < 62 {
		delay = math.Min(float64(base)*math.Pow(2, float64(attempt)), float64(ceiling))
	}

	if b.Jitter > 0 {
		r := b.Rand
		if r == nil {
			r = rand.Float64
		}
		delay += r() * b.Jitter * delay
	}
	return time.Duration(delay)
}

// WithBase returns a copy of b using base as the attempt-zero delay.
func (b Backoff) WithBase(base time.Duration) Backoff {
	b.Base = base
	return b
}

// ExponentialDelay is Delay for the default policy with an explicit base and cap.
func ExponentialDelay(attempt int, base, ceiling time.Duration) time.Duration {
	return Backoff{Base: base, Cap: ceiling, Jitter: DefaultJitter}.Delay(attempt)
}

// After returns Delay(attempt), raised to hint when the server asked for a
// longer wait. The hint is bounded by Cap.
func (b Backoff) After(attempt int, hint time.Duration) time.Duration {
	delay := b.Delay(attempt)
	ceiling := b.Cap
	if ceiling <= 0 {
		ceiling = DefaultCap
	}
	return max(delay, min(hint, ceiling))
}
