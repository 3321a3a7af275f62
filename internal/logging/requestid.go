package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// requestIDKey is the context key for storing/retrieving request IDs.
type requestIDKey struct{}

// ginAuditIDKey holds the id of the audit a request created or read.
const ginAuditIDKey = "__audit_id__"

// GenerateRequestID creates a new 8-character hex request ID.
func GenerateRequestID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}

// WithRequestID returns a new context with the request ID attached.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SetAuditID records the audit a request produced or served, so the access log
// line can be joined with the audit's own log lines.
func SetAuditID(c *gin.Context, auditID string) {
	if c != nil && auditID != "" {
		c.Set(ginAuditIDKey, auditID)
	}
}

func auditIDOf(c *gin.Context) string {
	if id, ok := c.Get(ginAuditIDKey); ok {
		if s, okString := id.(string); okString {
			return s
		}
	}
	return ""
}

// WithContext returns a logrus entry tagged with the request ID carried by ctx, if any.
func WithContext(ctx context.Context) *log.Entry {
	if id := GetRequestID(ctx); id != "" {
		return log.WithField("request_id", id)
	}
	return log.NewEntry(log.StandardLogger())
}
