package jobqueue

import (
	"math"
	"time"
)

// backoff returns the delay before the next poll after consecutive failed
// ticks. 1s * 2^(attempts-1), capped.
func backoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	seconds := math.Pow(2, float64(attempts-1))
	d := time.Duration(seconds * float64(time.Second))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
