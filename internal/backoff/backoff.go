// Package backoff computes jittered retry delays for the worker pool's
// RecordRetry re-offer step.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Config controls the exponential-backoff-with-jitter curve applied
// between a failed attempt and the job becoming eligible again.
type Config struct {
	MaxRetries          uint32
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultConfig mirrors MAX_RETRIES=3 with a short, lightly-jittered curve
// suitable for the in-process transform this queue runs.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          3,
		InitialInterval:     200 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.2,
	}
}

// Counter computes the delay for a given attempt number.
type Counter struct {
	Config
}

// Delay returns the jittered delay before a job should become eligible
// again after its attempt-th failure. attempt is 1-based (the attempts
// count after the failure that just occurred). MaxRetries is not
// consulted here; the worker pool's failure handling, not this package,
// decides whether a job goes back to pending or to failed.
func (c *Counter) Delay(attempt uint32) time.Duration {
	if attempt == 0 {
		attempt = 1
	}
	exp := float64(c.InitialInterval) * math.Pow(c.Multiplier, float64(attempt-1))
	if exp > float64(c.MaxInterval) {
		exp = float64(c.MaxInterval)
	}
	if c.RandomizationFactor > 0 {
		delta := c.RandomizationFactor * exp
		lo := exp - delta
		hi := exp + delta
		exp = lo + rand.Float64()*(hi-lo)
	}
	return time.Duration(exp)
}
