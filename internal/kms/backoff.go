package kms

import (
	"math"
	"time"
)

const (
	// defaultMaxRetries is the default number of retry attempts for connection failures.
	defaultMaxRetries = 3
	// defaultBaseDelay is the base delay for exponential backoff.
	defaultBaseDelay = 500 * time.Millisecond
	// defaultMaxDelay caps the backoff delay.
	defaultMaxDelay = 5 * time.Second
)

// Backoff computes retry delays as a deterministic function of the attempt
// number. The growth is geometric and always capped at Max.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Factor is the per-attempt growth multiplier.
	Factor float64

	// Max bounds any single delay.
	Max time.Duration

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
}

// DefaultBackoff returns the policy used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:       defaultBaseDelay,
		Factor:     2,
		Max:        defaultMaxDelay,
		MaxRetries: defaultMaxRetries,
	}
}

// Delay returns the wait before retrying after the given attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	delay := float64(b.Base) * math.Pow(b.Factor, float64(attempt))
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	return time.Duration(delay)
}
