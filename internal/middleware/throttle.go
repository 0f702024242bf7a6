package middleware

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/maksimzayats/fastdjango/internal/ratelimit"
	"github.com/maksimzayats/fastdjango/internal/request"
)

// Throttler applies rate limiting keyed by request identity. A single
// Throttler owns the fail policy: by default a counter-store failure counts
// as limited (fail-closed) so an outage cannot remove the admission gate.
type Throttler struct {
	limiter  ratelimit.Limiter
	info     *request.Info
	failOpen bool
}

// NewThrottler creates a throttler over the given limiter.
func NewThrottler(limiter ratelimit.Limiter, info *request.Info, failOpen bool) *Throttler {
	return &Throttler{limiter: limiter, info: info, failOpen: failOpen}
}

// ByIP limits requests per client IP and route.
func (t *Throttler) ByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ratelimit.IPKey(r.Method, r.URL.Path, t.info.ClientIP(r))
		t.admit(w, r, next, key)
	})
}

// ByUser limits requests per authenticated user and route. Must run after
// Auth; unauthenticated requests are rejected.
func (t *Throttler) ByUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		key := ratelimit.UserKey(r.Method, r.URL.Path, userID)
		t.admit(w, r, next, key)
	})
}

func (t *Throttler) admit(w http.ResponseWriter, r *http.Request, next http.Handler, key string) {
	result, err := t.limiter.Limit(r.Context(), key, 1)
	if err != nil {
		log.Printf("rate limit store error for key %s: %v", key, err)
		if t.failOpen {
			next.ServeHTTP(w, r)
			return
		}
		respondWithError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	if result.Limited {
		if result.RetryAfter > 0 {
			seconds := int(result.RetryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		respondWithError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	next.ServeHTTP(w, r)
}
