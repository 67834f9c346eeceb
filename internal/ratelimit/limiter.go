// Package ratelimit provides token-bucket limiting for outbound calls to
// search sources that throttle aggressive clients.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config configures a token bucket.
type Config struct {
	// RequestsPerSecond is the refill rate.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// BurstSize is the bucket capacity.
	BurstSize int `yaml:"burst_size"`
}

// Bucket is a token bucket. It is safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	now        func() time.Time
}

// NewBucket creates a full bucket.
func NewBucket(cfg Config) *Bucket {
	return newBucket(cfg, time.Now)
}

func newBucket(cfg Config, now func() time.Time) *Bucket {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &Bucket{
		tokens:     float64(cfg.BurstSize),
		maxTokens:  float64(cfg.BurstSize),
		refillRate: cfg.RequestsPerSecond,
		lastRefill: now(),
		now:        now,
	}
}

func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
}

// Allow takes a token if one is available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// reserve takes a token unconditionally and returns how long the caller
// must wait before the token is actually valid.
func (b *Bucket) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(-b.tokens / b.refillRate * float64(time.Second))
}

// Wait blocks until a token is available or ctx is done.
func (b *Bucket) Wait(ctx context.Context) error {
	d := b.reserve()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		b.mu.Lock()
		b.tokens++
		b.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Limiter holds one bucket per key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	cfg     Config
}

// NewLimiter creates a keyed limiter where every key gets its own bucket.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{buckets: make(map[string]*Bucket), cfg: cfg}
}

// Bucket returns the bucket for key, creating it on first use.
func (l *Limiter) Bucket(key string) *Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = NewBucket(l.cfg)
		l.buckets[key] = b
	}
	return b
}

// Wait blocks until key may proceed.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.Bucket(key).Wait(ctx)
}
