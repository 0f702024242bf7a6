package request

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name           string
		trustedProxies int
		remoteAddr     string
		forwardedFor   string
		want           string
	}{
		{
			name:           "no proxies uses peer address",
			trustedProxies: 0,
			remoteAddr:     "203.0.113.7:54321",
			want:           "203.0.113.7",
		},
		{
			name:           "no proxies ignores forwarded header",
			trustedProxies: 0,
			remoteAddr:     "203.0.113.7:54321",
			forwardedFor:   "1.1.1.1",
			want:           "203.0.113.7",
		},
		{
			name:           "no proxies with invalid peer yields no IP",
			trustedProxies: 0,
			remoteAddr:     "not-an-address",
			want:           "",
		},
		{
			name:           "two proxies take second from the right",
			trustedProxies: 2,
			remoteAddr:     "10.0.0.1:1234",
			forwardedFor:   "1.1.1.1, 2.2.2.2, 3.3.3.3",
			want:           "2.2.2.2",
		},
		{
			name:           "proxy count clamps to list length",
			trustedProxies: 5,
			remoteAddr:     "10.0.0.1:1234",
			forwardedFor:   "1.1.1.1, 2.2.2.2",
			want:           "1.1.1.1",
		},
		{
			name:           "one proxy takes the last entry",
			trustedProxies: 1,
			remoteAddr:     "10.0.0.1:1234",
			forwardedFor:   "1.1.1.1, 2.2.2.2, 3.3.3.3",
			want:           "3.3.3.3",
		},
		{
			name:           "proxies configured but header absent falls back to peer",
			trustedProxies: 2,
			remoteAddr:     "203.0.113.7:54321",
			want:           "203.0.113.7",
		},
		{
			name:           "ipv6 peer",
			trustedProxies: 0,
			remoteAddr:     "[2001:db8::1]:443",
			want:           "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NewInfo(tt.trustedProxies)

			r := httptest.NewRequest("POST", "/v1/users/me/token", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwardedFor != "" {
				r.Header.Set("X-Forwarded-For", tt.forwardedFor)
			}

			if got := info.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	info := NewInfo(0)
	r := httptest.NewRequest("GET", "/v1/users/me", nil)
	r.Header.Set("User-Agent", "test-agent/1.0")

	if got := info.UserAgent(r); got != "test-agent/1.0" {
		t.Errorf("UserAgent() = %q, want %q", got, "test-agent/1.0")
	}
}
