package checks

import (
	"sync"
	"time"
)

const (
	DefaultWindow      = 30 * time.Second
	DefaultMaxRequests = 10
)

// RateLimiter is a sliding-window counter per client key. Rejected requests
// are not counted.
type RateLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{window: window, max: limit, now: time.Now, hits: make(map[string][]time.Time)}
}

// Allow records a hit for key unless the window is already full.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.now()
	kept := r.hits[key][:0]
	for _, h := range r.hits[key] {
		if t.Sub(h) <= r.window {
			kept = append(kept, h)
		}
	}
	if len(kept) >= r.max {
		r.hits[key] = kept
		return false
	}
	r.hits[key] = append(kept, t)
	return true
}

func (r *RateLimiter) Limit() (int, time.Duration) {
	return r.max, r.window
}
