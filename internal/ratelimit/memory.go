package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token bucket per key in process memory. State is
// local to the process, so it enforces a per-instance quota only; use
// RedisLimiter when a global budget is required.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	quota   Quota
	idleTTL time.Duration
}

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates an in-memory token bucket limiter.
func NewMemoryLimiter(quota Quota) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*memoryEntry),
		quota:   quota,
		idleTTL: 2 * quota.Period,
	}
}

// Limit checks and deducts cost tokens for key. It never fails: the store
// is the process itself.
func (l *MemoryLimiter) Limit(_ context.Context, key string, cost int) (Result, error) {
	now := time.Now()
	lim := l.get(key, now)

	r := lim.ReserveN(now, cost)
	if !r.OK() {
		// cost exceeds the bucket capacity; it can never be admitted.
		return Result{Limited: true, RetryAfter: l.quota.Period}, nil
	}

	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Result{
			Limited:    true,
			Remaining:  int(lim.TokensAt(now)),
			RetryAfter: delay,
		}, nil
	}

	return Result{Remaining: int(lim.TokensAt(now))}, nil
}

func (l *MemoryLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(rate.Limit(float64(l.quota.Limit)/l.quota.Period.Seconds()), l.quota.Limit)
	l.entries[key] = &memoryEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup drops buckets idle for longer than twice the quota period.
func (l *MemoryLimiter) Cleanup() {
	cutoff := time.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}
