package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket allows bursts of up to maxTokens and refills one token per
// refillTime.
type TokenBucket struct {
	tokens     int
	maxTokens  int
	refillTime time.Duration
	lastRefill time.Time
	now        func() time.Time
	mutex      sync.Mutex
}

func NewTokenBucket(maxTokens int, refillTime time.Duration) *TokenBucket {
	return newTokenBucket(maxTokens, refillTime, time.Now)
}

func newTokenBucket(maxTokens int, refillTime time.Duration, now func() time.Time) *TokenBucket {
	if maxTokens < 1 {
		maxTokens = 1
	}
	if refillTime <= 0 {
		refillTime = time.Second
	}
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillTime: refillTime,
		lastRefill: now(),
		now:        now,
	}
}

// Allow consumes a token if one is available. When it is not, it returns
// how long until the next refill.
func (tb *TokenBucket) Allow() (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := tb.now()
	if refills := int(now.Sub(tb.lastRefill) / tb.refillTime); refills > 0 {
		tb.tokens += refills
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastRefill = tb.lastRefill.Add(time.Duration(refills) * tb.refillTime)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}
	return false, tb.lastRefill.Add(tb.refillTime).Sub(now)
}

func (tb *TokenBucket) Tokens() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return tb.tokens
}

// RateLimiter keeps one bucket per key, all with the same shape. The
// poller keys it by job name.
type RateLimiter struct {
	burst      int
	refillTime time.Duration
	now        func() time.Time

	buckets map[string]*TokenBucket
	mutex   sync.Mutex
}

func NewRateLimiter(burst int, refillTime time.Duration) *RateLimiter {
	return &RateLimiter{
		burst:      burst,
		refillTime: refillTime,
		now:        time.Now,
		buckets:    make(map[string]*TokenBucket),
	}
}

func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	return rl.bucket(key).Allow()
}

func (rl *RateLimiter) bucket(key string) *TokenBucket {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = newTokenBucket(rl.burst, rl.refillTime, rl.now)
		rl.buckets[key] = bucket
	}
	return bucket
}

// Status returns the remaining and maximum tokens of key.
func (rl *RateLimiter) Status(key string) (tokens int, maxTokens int) {
	rl.mutex.Lock()
	bucket, ok := rl.buckets[key]
	rl.mutex.Unlock()
	if !ok {
		return rl.burst, rl.burst
	}
	return bucket.Tokens(), bucket.maxTokens
}

// Reset drops every bucket, e.g. when the session ends.
func (rl *RateLimiter) Reset() {
	rl.mutex.Lock()
	rl.buckets = make(map[string]*TokenBucket)
	rl.mutex.Unlock()
}
