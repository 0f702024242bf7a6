package ratelimit

import (
	"context"
	"time"
)

// Quota expresses a rate limit as "Limit per Period". The bucket capacity
// equals Limit, so a full burst of Limit calls is admitted before refill
// pacing kicks in.
type Quota struct {
	Limit  int
	Period time.Duration
}

// PerMinute returns a quota of n tokens per minute.
func PerMinute(n int) Quota {
	return Quota{Limit: n, Period: time.Minute}
}

// ratePerMilli returns the refill rate in tokens per millisecond.
func (q Quota) ratePerMilli() float64 {
	return float64(q.Limit) / float64(q.Period.Milliseconds())
}

// Result is the outcome of a limit check. A limited call is a normal
// outcome, not an error; errors are reserved for store failures.
type Result struct {
	Limited    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether an action identified by key may proceed now,
// deducting cost tokens from the key's bucket when it may.
type Limiter interface {
	Limit(ctx context.Context, key string, cost int) (Result, error)
}
