package middleware

import (
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceparentHeader     = "traceparent"
	TraceparentContextKey = "traceparent"
	TraceIDContextKey     = "trace_id"
)

// TraceMiddleware makes sure every request carries a W3C traceparent. A valid
// incoming header is kept; otherwise a new one is generated. The value is
// stored in the context and echoed on the response.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceparent := EnsureTraceparent(c.GetHeader(TraceparentHeader))
		c.Set(TraceparentContextKey, traceparent)
		c.Set(TraceIDContextKey, ExtractTraceID(traceparent))
		c.Header(TraceparentHeader, traceparent)
		c.Next()
	}
}

// GetTraceparent returns the traceparent set by TraceMiddleware
func GetTraceparent(c *gin.Context) string {
	return c.GetString(TraceparentContextKey)
}

// GetTraceID returns the trace id set by TraceMiddleware
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDContextKey)
}

// ExtractTraceID extracts trace_id from W3C traceparent header
// Format: 00-<trace-id>-<span-id>-<flags>
// Returns empty string if traceparent is invalid or missing
func ExtractTraceID(traceparent string) string {
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 || parts[0] != "00" {
		return ""
	}
	if !isHex(parts[1], 32) || !isHex(parts[2], 16) || !isHex(parts[3], 2) {
		return ""
	}
	// all-zero ids are invalid
	if strings.Trim(parts[1], "0") == "" || strings.Trim(parts[2], "0") == "" {
		return ""
	}
	return parts[1]
}

// GenerateTraceparent generates a sampled W3C traceparent header
func GenerateTraceparent() string {
	traceID := strings.ReplaceAll(uuid.New().String(), "-", "")
	spanID := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	return "00-" + traceID + "-" + spanID + "-01"
}

// EnsureTraceparent returns traceparent when it is valid, otherwise a new one
func EnsureTraceparent(traceparent string) string {
	traceparent = strings.ToLower(strings.TrimSpace(traceparent))
	if ExtractTraceID(traceparent) == "" {
		return GenerateTraceparent()
	}
	return traceparent
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
