package sync

import (
	"math/rand"
	"time"
)

// backoffDelay computes the exponential retry delay for an item that has
// already failed retryCount times: base doubled per retry, capped at max.
func backoffDelay(base, max time.Duration, retryCount int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = time.Minute
	}
	if retryCount < 0 {
		retryCount = 0
	}
	// A shift past 30 already exceeds any sane cap and would overflow.
	if retryCount > 30 {
		return max
	}

	d := base << uint(retryCount)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// withJitter spreads a delay by ±10% so a fleet of devices recovering from
// the same outage does not retry in lockstep.
func withJitter(d time.Duration) time.Duration {
	span := int64(d) / 10
	if span <= 0 {
		return d
	}
	return d - time.Duration(span) + time.Duration(rand.Int63n(2*span+1))
}
