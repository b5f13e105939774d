package retry

import (
	"math/rand/v2"
	"time"
)

// MaxBackoff caps every computed delay.
const MaxBackoff = 30 * time.Second

// ExponentialBackoff returns base * 2^attempt, capped at MaxBackoff.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Shifts past 30 overflow for realistic bases long before the cap matters.
	if attempt > 30 {
		return MaxBackoff
	}
	d := base * time.Duration(1<<uint(attempt))
	if d <= 0 || d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// Jittered spreads ExponentialBackoff by ±25% so redelivered tasks do not
// wake up in lockstep.
func Jittered(attempt int, base time.Duration) time.Duration {
	d := ExponentialBackoff(attempt, base)
	if d < 4 {
		return d
	}
	return d + time.Duration(rand.Int64N(int64(d)/2)) - d/4
}
