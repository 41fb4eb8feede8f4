// Package ratelimiter implements the per-session/per-IP fixed-window buckets
// from spec §4.9 (component C9). Stdlib-only: no rate-limiting library
// appears anywhere in the example pack.
package ratelimiter

import (
	"sync"
	"time"

	"github.com/vulbsti/loanmatchmaker/model"
)

// Class identifies one of the three fixed operation classes from spec §4.9.
type Class string

const (
	ClassChat     Class = "chat"
	ClassMatching Class = "matching"
	ClassGeneral  Class = "general"
)

// window describes one class's fixed bucket size and period.
type window struct {
	limit  int
	period time.Duration
}

var windows = map[Class]window{
	ClassChat:     {limit: 20, period: 60 * time.Second},
	ClassMatching: {limit: 3, period: 300 * time.Second},
	ClassGeneral:  {limit: 100, period: 900 * time.Second},
}

// bucket tracks one (class, key) pair's fixed-window usage.
type bucket struct {
	count      int
	windowEnds time.Time
}

// Limiter serves three independent fixed-window buckets keyed by (class, key),
// where key is sessionId when present else client IP (spec §4.9). Buckets
// are evicted lazily: a bucket past its window resets on next access
// rather than being swept by a background task.
type Limiter struct {
	mu      sync.Mutex
	buckets map[Class]map[string]*bucket
}

// New returns a Limiter with empty buckets for all three classes.
func New() *Limiter {
	l := &Limiter{buckets: make(map[Class]map[string]*bucket)}
	for c := range windows {
		l.buckets[c] = make(map[string]*bucket)
	}
	return l
}

// Allow records one operation of the given class for key, returning a
// RateLimited error (Kind == model.KindRateLimited, Bucket == class) when
// the bucket's limit for its current window has already been exhausted.
func (l *Limiter) Allow(class Class, key string) error {
	w, ok := windows[class]
	if !ok {
		return model.NewInternalError("unknown rate limiter class: "+string(class), nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[class][key]
	if !ok || now.After(b.windowEnds) {
		b = &bucket{count: 0, windowEnds: now.Add(w.period)}
		l.buckets[class][key] = b
	}

	if b.count >= w.limit {
		return model.NewRateLimitedError(string(class), "rate limit exceeded for "+string(class))
	}
	b.count++
	return nil
}
