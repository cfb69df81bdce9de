package retry

import "time"

// BackoffStrategy decides how long to pause before the next attempt
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// NoBackoff retries immediately
type NoBackoff struct{}

// NextDelay always returns zero
func (NoBackoff) NextDelay(int) time.Duration { return 0 }

// BackoffFor returns NoBackoff for a non-positive delay and a
// ConstantBackoff otherwise
func BackoffFor(delay time.Duration) BackoffStrategy {
	if delay <= 0 {
		return NoBackoff{}
	}
	return ConstantBackoff{Delay: delay}
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}
