package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := newTokenBucket(2, 2*time.Second, clock.now)

	ok, _ := tb.Allow()
	assert.True(t, ok)
	ok, _ = tb.Allow()
	assert.True(t, ok)

	ok, wait := tb.Allow()
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	clock.advance(1500 * time.Millisecond)
	ok, wait = tb.Allow()
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	clock.advance(500 * time.Millisecond)
	ok, _ = tb.Allow()
	assert.True(t, ok)
	assert.Equal(t, 0, tb.Tokens())

	clock.advance(time.Minute)
	ok, _ = tb.Allow()
	assert.True(t, ok)
	assert.Equal(t, 1, tb.Tokens(), "refill is capped at the burst size")
}

func TestTokenBucket_Defaults(t *testing.T) {
	tb := NewTokenBucket(0, 0)
	assert.Equal(t, 1, tb.Tokens())
	assert.Equal(t, time.Second, tb.refillTime)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(1, time.Second)
	rl.now = clock.now

	ok, _ := rl.Allow("cart-badge")
	assert.True(t, ok)
	ok, _ = rl.Allow("cart-badge")
	assert.False(t, ok)
	ok, _ = rl.Allow("conversation-badge")
	assert.True(t, ok)

	tokens, max := rl.Status("cart-badge")
	assert.Equal(t, 0, tokens)
	assert.Equal(t, 1, max)

	tokens, max = rl.Status("unknown")
	assert.Equal(t, 1, tokens)
	assert.Equal(t, 1, max)

	rl.Reset()
	ok, _ = rl.Allow("cart-badge")
	assert.True(t, ok)
}
