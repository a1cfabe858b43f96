package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Logging writes one structured line per request once the handler chain
// has finished. Server errors log at Error, client errors at Warn.
func Logging(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes", c.Writer.Size()),
		}
		if route := c.FullPath(); route != "" {
			attrs = append(attrs, slog.String("route", route))
		}
		if userID := UserID(c); userID != "" {
			attrs = append(attrs, slog.String("userID", userID))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level, msg := slog.LevelInfo, "request completed"
		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			level, msg = slog.LevelError, "request failed"
		case status >= http.StatusBadRequest:
			level, msg = slog.LevelWarn, "request rejected"
		}

		logger.LogAttrs(c.Request.Context(), level, msg, attrs...)
	}
}
