package middleware

import (
	"net"
	"net/http"
	"strings"

	"billine-gateway/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ClientIPContextKey = "client_ip"

// SourceAllowlistMiddleware rejects requests whose client address is outside
// allowed. An empty allowlist accepts every source. Forwarding headers are
// honoured only when the direct peer is in proxies.
func SourceAllowlistMiddleware(allowed, proxies *CIDRList, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := extractClientIP(c, proxies)
		c.Set(ClientIPContextKey, clientIP)

		if allowed.Len() > 0 && !allowed.Contains(clientIP) {
			respondError(c, logger, http.StatusForbidden,
				errors.NewDomainError(errors.CodeForbiddenSource, "source not allowed", clientIP))
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetClientIP returns the address resolved by SourceAllowlistMiddleware,
// falling back to the direct peer.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetString(ClientIPContextKey); ip != "" {
		return ip
	}
	return extractClientIP(c, nil)
}

func extractClientIP(c *gin.Context, proxies *CIDRList) string {
	remoteAddr := c.Request.RemoteAddr
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	// Only trust proxy headers if request comes from a trusted proxy
	if proxies.Contains(host) {
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}

		if xrip := c.GetHeader("X-Real-IP"); xrip != "" {
			return xrip
		}
	}

	return host
}

func respondError(c *gin.Context, logger *zap.Logger, statusCode int, err error) {
	logger.Warn("request rejected by middleware",
		zap.Int("status_code", statusCode),
		zap.Error(err),
	)

	// Sanitize error response - don't leak internal details
	c.JSON(statusCode, gin.H{
		"error": "request rejected",
	})
}
