package middle

import (
	"net/http"
	"strings"
)

// GetClientIP extracts the real client IP from forwarding headers.
// Resolution order: X-Forwarded-For, X-Real-IP, RemoteAddr, loopback.
func GetClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// Take the first IP in case of multiple
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	remoteAddr := r.RemoteAddr
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		ip := remoteAddr[:idx]
		// Handle IPv6 localhost addresses
		if ip == "[::1]" {
			return "127.0.0.1"
		}
		if ip != "" {
			return ip
		}
	}

	if remoteAddr != "" {
		return remoteAddr
	}

	return "127.0.0.1"
}
