// Package requestutil holds request-scoped helpers shared by middleware and handlers.
package requestutil

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
)

const (
	// HeaderXRequestID is the request id header.
	HeaderXRequestID = "X-Request-ID"
	// ContextKeyRequestID is the gin context key holding the request id.
	ContextKeyRequestID = "request_id"
)

// GetRequestID returns the request id stored by the RequestID middleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// ClientIP returns the address used as the client identity.
// Proxy headers are honored only when the direct peer is a trusted proxy.
func ClientIP(req *http.Request, trustedProxies []string) string {
	remoteIP := remoteIP(req)

	if isTrustedProxy(remoteIP, trustedProxies) {
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			ip := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
		if xri := strings.TrimSpace(req.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
			return xri
		}
	}

	return remoteIP
}

func remoteIP(req *http.Request) string {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return ip
}

// isTrustedProxy supports single addresses and CIDR ranges.
func isTrustedProxy(ip string, trusted []string) bool {
	if len(trusted) == 0 {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}

	for _, cidr := range trusted {
		if !strings.Contains(cidr, "/") {
			if cidr == ip {
				return true
			}
			continue
		}
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warnw("invalid CIDR in trusted proxies", "cidr", cidr, "error", err.Error())
			continue
		}
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}
