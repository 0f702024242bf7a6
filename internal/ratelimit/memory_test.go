package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_AdmitsBurstThenLimits(t *testing.T) {
	limiter := NewMemoryLimiter(PerMinute(5))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Limit(ctx, "k", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Limited {
			t.Fatalf("call %d of 5 should be admitted", i+1)
		}
	}

	result, err := limiter.Limit(ctx, "k", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Limited {
		t.Fatal("6th call should be limited")
	}
	if result.RetryAfter <= 0 {
		t.Errorf("limited result should carry a retry-after hint, got %v", result.RetryAfter)
	}
}

func TestMemoryLimiter_IndependentKeys(t *testing.T) {
	limiter := NewMemoryLimiter(Quota{Limit: 1, Period: time.Minute})
	ctx := context.Background()

	if result, _ := limiter.Limit(ctx, "a", 1); result.Limited {
		t.Fatal("first call for key a should be admitted")
	}
	if result, _ := limiter.Limit(ctx, "b", 1); result.Limited {
		t.Fatal("key b has its own bucket and should be admitted")
	}
}

func TestMemoryLimiter_CostAboveCapacityNeverAdmitted(t *testing.T) {
	limiter := NewMemoryLimiter(Quota{Limit: 2, Period: time.Minute})

	result, err := limiter.Limit(context.Background(), "k", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Limited {
		t.Fatal("cost above capacity must be limited")
	}
}

func TestMemoryLimiter_RefillsOverTime(t *testing.T) {
	// 100 per second refills one token every 10ms; a short sleep is enough.
	limiter := NewMemoryLimiter(Quota{Limit: 100, Period: time.Second})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if _, err := limiter.Limit(ctx, "k", 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if result, _ := limiter.Limit(ctx, "k", 1); !result.Limited {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)

	result, err := limiter.Limit(ctx, "k", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Limited {
		t.Fatal("call after refill interval should be admitted")
	}
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	limiter := NewMemoryLimiter(Quota{Limit: 1, Period: time.Minute})
	limiter.idleTTL = 0

	_, _ = limiter.Limit(context.Background(), "k", 1)
	time.Sleep(time.Millisecond)
	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if len(limiter.entries) != 0 {
		t.Errorf("idle entries should be evicted, %d left", len(limiter.entries))
	}
}
