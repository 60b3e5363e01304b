// Package ratelimit implements a token bucket used to pace scraping of
// the wholesale site, which publishes no official rate limits.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket: maxTokens capacity, one token added every
// refillEvery.
type Limiter struct {
	mu          sync.Mutex
	tokens      int
	maxTokens   int
	refillEvery time.Duration
	lastRefill  time.Time
}

// NewLimiter creates a full bucket.
func NewLimiter(maxTokens int, refillEvery time.Duration) *Limiter {
	return &Limiter{
		tokens:      maxTokens,
		maxTokens:   maxTokens,
		refillEvery: refillEvery,
		lastRefill:  time.Now(),
	}
}

// Allow consumes a token when one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens > 0 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is consumed or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		pause := l.refillEvery
		if pause > 50*time.Millisecond {
			pause = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

// Available returns the current token count.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// refill adds tokens for the time elapsed since the last refill. Caller
// holds the mutex.
func (l *Limiter) refill() {
	elapsed := time.Since(l.lastRefill)
	add := int(elapsed / l.refillEvery)
	if add > 0 {
		l.tokens += add
		if l.tokens > l.maxTokens {
			l.tokens = l.maxTokens
		}
		l.lastRefill = l.lastRefill.Add(time.Duration(add) * l.refillEvery)
	}
}
