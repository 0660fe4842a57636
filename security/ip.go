package security

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts the client IP address from a request.
// When trustProxy is enabled the X-Forwarded-For and X-Real-IP headers are
// consulted first; only enable it behind a trusted reverse proxy, since
// these headers are attacker-controlled otherwise.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Leftmost entry is the originating client
			ip := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
