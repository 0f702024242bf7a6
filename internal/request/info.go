package request

import (
	"log"
	"net"
	"net/http"
	"strings"
)

// Info resolves client identity details from an incoming request, taking
// the configured number of trusted reverse proxies into account.
type Info struct {
	// TrustedProxies is the number of proxies in front of the application.
	// With 0 the transport peer address is used; with N the Nth-from-the-right
	// entry of the forwarded header is taken (clamped to the list length).
	TrustedProxies int

	// IPHeader is the forwarded-address header, X-Forwarded-For by default.
	IPHeader string
}

// NewInfo creates a request info service for the given proxy depth.
func NewInfo(trustedProxies int) *Info {
	return &Info{
		TrustedProxies: trustedProxies,
		IPHeader:       "X-Forwarded-For",
	}
}

// UserAgent returns the request's User-Agent header.
func (i *Info) UserAgent(r *http.Request) string {
	return r.UserAgent()
}

// ClientIP returns the client address, or "" when it cannot be determined.
// With no trusted proxies the peer address must parse as an IP; a bogus
// peer yields "" rather than a fabricated value. Behind proxies the
// forwarded header entry is taken as-is, trimmed but unvalidated.
func (i *Info) ClientIP(r *http.Request) string {
	xff := r.Header.Get(i.IPHeader)

	if i.TrustedProxies == 0 || xff == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if net.ParseIP(host) == nil {
			log.Printf("remote address is not a valid IP: %q", host)
			return ""
		}
		return host
	}

	addresses := strings.Split(xff, ",")
	n := i.TrustedProxies
	if n > len(addresses) {
		n = len(addresses)
	}
	return strings.TrimSpace(addresses[len(addresses)-n])
}
