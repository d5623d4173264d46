package adapter

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// jitteredBackoff implements [backoff.BackOff] with a one-sided jitter
// schedule: the n-th delay lies in [capped, 1.5 × capped] where
// capped = min(base × 2ⁿ, cap). The jitter is added on top of the capped
// value, not centered around it, so many devices reconnecting after an
// outage do not retry in lockstep.
type jitteredBackoff struct {
	base    time.Duration
	cap     time.Duration
	attempt int
	random  func() float64
}

func newJitteredBackoff(base, cap time.Duration) *jitteredBackoff {
	return &jitteredBackoff{base: base, cap: cap, random: rand.Float64}
}

// NextBackOff implements [backoff.BackOff].
func (b *jitteredBackoff) NextBackOff() time.Duration {
	d := jitteredDelay(b.attempt, b.base, b.cap, b.random)
	b.attempt++
	return d
}

// Reset implements [backoff.BackOff].
func (b *jitteredBackoff) Reset() {
	b.attempt = 0
}

// jitteredDelay computes the delay for one retry attempt (0-based).
// random must return a value in [0, 1).
func jitteredDelay(attempt int, base, cap time.Duration, random func() float64) time.Duration {
	grown := float64(base) * math.Pow(2, float64(attempt))
	capped := math.Min(grown, float64(cap))
	return time.Duration(capped + random()*0.5*capped)
}

// retryPolicy bundles the backoff schedule with the attempt budget used by
// the transport.
type retryPolicy struct {
	base        time.Duration
	cap         time.Duration
	maxAttempts int
}

func (p retryPolicy) backOff() backoff.BackOff {
	return backoff.WithMaxRetries(newJitteredBackoff(p.base, p.cap), uint64(p.maxAttempts))
}
