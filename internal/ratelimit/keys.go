package ratelimit

import (
	"strings"

	"github.com/google/uuid"
)

// IPKey derives the limiter key for IP-scoped throttling of a route.
func IPKey(method, path, ip string) string {
	return buildKey(method, path, ip)
}

// UserKey derives the limiter key for user-scoped throttling of a route.
// Callers must have authenticated the user first.
func UserKey(method, path string, userID uuid.UUID) string {
	return buildKey(method, path, userID.String())
}

func buildKey(method, path, who string) string {
	return strings.ToLower("throttler:" + method + ":" + path + ":" + who)
}
