package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/BarkinBalci/story-analytics-service/internal/domain"
)

// ClientIP returns the caller address: the first X-Forwarded-For hop, then X-Real-IP,
// then the connection address. It never returns an empty string.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return domain.UnknownValue
}
