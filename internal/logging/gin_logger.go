// Package logging sets up logrus for the audit server: the log formatter, file
// rotation, request ids for audit requests and the Gin access log and recovery
// middleware.
package logging

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/claudio-seo/claudio/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// auditPathPrefixes are the paths that run or read audits and get a request ID.
var auditPathPrefixes = []string{
	"/audit",
	"/api/audits",
}

// GinLogrusLogger logs one line per request. Audit requests carry a request ID
// through their context, and the line names the audit they touched.
//
// Output format (audit):  [2026-03-02 10:04:11] [a1b2c3d4] [info ] 201 |       23.559s | ... audit_id=...
// Output format (others): [2026-03-02 10:04:11] [--------] [info ] 200 |          1ms | ...
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := util.MaskSensitiveQuery(c.Request.URL.RawQuery)

		requestID := "--------"
		if isAuditPath(path) {
			requestID = GenerateRequestID()
			c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
		}

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		latency := time.Since(start)
		if latency > time.Minute {
			latency = latency.Truncate(time.Second)
		} else {
			latency = latency.Truncate(time.Millisecond)
		}

		statusCode := c.Writer.Status()
		logLine := fmt.Sprintf("%3d | %13v | %15s | %-7s \"%s\"", statusCode, latency, c.ClientIP(), c.Request.Method, path)
		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			logLine = logLine + " | " + errorMessage
		}

		entry := log.WithField("request_id", requestID)
		if auditID := auditIDOf(c); auditID != "" {
			entry = entry.WithField("audit_id", auditID)
		}

		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(logLine)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(logLine)
		default:
			entry.Info(logLine)
		}
	}
}

func isAuditPath(path string) bool {
	for _, prefix := range auditPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// GinLogrusRecovery logs panics with their stack. API callers get a JSON error
// body, the form page a bare 500.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		WithContext(c.Request.Context()).WithFields(log.Fields{
			"panic": recovered,
			"stack": string(debug.Stack()),
			"path":  c.Request.URL.Path,
		}).Error("recovered from panic")

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
