package util

import (
	"math"
	"time"

	"github.com/arcmirror/arcproxy/internal/core/constants"
)

// CalculateExponentialBackoff computes exponential backoff with optional jitter.
// Formula: baseDelay * 2^(attempt-1), capped at maxDelay
func CalculateExponentialBackoff(attempt int, baseDelay, maxDelay time.Duration, jitterPercent float64) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := float64(baseDelay) * math.Pow(2, float64(attempt-1))
	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	if jitterPercent > 0 {
		// Time-based pseudo-random avoids pulling in math/rand for a single jitter value.
		pseudoRandom := float64(time.Now().UnixNano()%1000) / 1000.0
		jitter := backoff * jitterPercent * (pseudoRandom - 0.5)
		backoff += jitter
	}

	return time.Duration(backoff)
}

// CalculateConnectionRetryBackoff computes backoff for provider connection
// retry attempts (not per-order provider rotation, which never retries a
// provider within the same round): linear progression capped at
// constants.DefaultMaxBackoffSeconds.
func CalculateConnectionRetryBackoff(consecutiveFailures int) time.Duration {
	backoff := time.Duration(consecutiveFailures*constants.ConnectionRetryBackoffMultiplier) * time.Second
	if backoff > constants.DefaultMaxBackoffSeconds {
		backoff = constants.DefaultMaxBackoffSeconds
	}
	return backoff
}
