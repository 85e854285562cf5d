package auth

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity int64
	tokens   float64
	last     time.Time
}

// NewRateLimiter allows rate operations per interval, with bursts up to rate.
func NewRateLimiter(rate int64, interval time.Duration) *RateLimiter {
	if rate <= 0 || interval <= 0 {
		panic("rate and interval must be positive")
	}

	return &RateLimiter{
		rate:     float64(rate) / interval.Seconds(),
		capacity: rate,
		tokens:   float64(rate),
		last:     time.Now(),
	}
}

// Allow consumes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.last).Seconds()
	rl.last = now

	rl.tokens = min(float64(rl.capacity), rl.tokens+elapsed*rl.rate)

	if rl.tokens < 1.0 {
		return false
	}

	rl.tokens--
	return true
}

// WaitTime returns the time to wait before the next token is available
func (rl *RateLimiter) WaitTime() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.tokens >= 1.0 {
		return 0
	}

	return time.Duration((1.0 - rl.tokens) / rl.rate * float64(time.Second))
}

// Reset refills the bucket.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = float64(rl.capacity)
	rl.last = time.Now()
}

/*
KeyedLimiter keeps one bucket per client key, so a single noisy caller cannot
starve the others.
*/
type KeyedLimiter struct {
	mu       sync.Mutex
	rate     int64
	interval time.Duration
	buckets  map[string]*RateLimiter
}

func NewKeyedLimiter(rate int64, interval time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		rate:     rate,
		interval: interval,
		buckets:  make(map[string]*RateLimiter),
	}
}

func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	rl, ok := kl.buckets[key]
	if !ok {
		rl = NewRateLimiter(kl.rate, kl.interval)
		kl.buckets[key] = rl
	}
	kl.mu.Unlock()

	return rl.Allow()
}

// WaitTime is how long key has to wait for its next token.
func (kl *KeyedLimiter) WaitTime(key string) time.Duration {
	kl.mu.Lock()
	rl, ok := kl.buckets[key]
	kl.mu.Unlock()

	if !ok {
		return 0
	}

	return rl.WaitTime()
}
