// Package backoff provides exponential backoff with jitter for backend and
// search retries.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// Initial is the delay before the second attempt.
	Initial time.Duration
	// Max caps every delay.
	Max time.Duration
	// Factor is the exponential growth applied per attempt.
	Factor float64
	// Jitter is the randomization factor (0.0 to 1.0) added on top of the base delay.
	Jitter float64
}

// BackendPolicy is used for retrying model backends: 250ms, 500ms, 1s ... capped at 5s.
func BackendPolicy() Policy {
	return Policy{Initial: 250 * time.Millisecond, Max: 5 * time.Second, Factor: 2, Jitter: 0.1}
}

// RateLimitPolicy is used after HTTP 429 responses from search sources.
func RateLimitPolicy() Policy {
	return Policy{Initial: time.Second, Max: 10 * time.Second, Factor: 2, Jitter: 0.2}
}

// Delay returns the delay to wait after the given attempt (1-indexed).
func (p Policy) Delay(attempt int) time.Duration {
	return p.delayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// delayWithRand computes min(Max, base + base*Jitter*r) where
// base = Initial * Factor^(attempt-1).
func (p Policy) delayWithRand(attempt int, r float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	base := float64(p.Initial) * math.Pow(factor, exp)
	total := base + base*p.Jitter*r
	if p.Max > 0 {
		total = math.Min(float64(p.Max), total)
	}
	return time.Duration(math.Round(total))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
