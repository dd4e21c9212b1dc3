package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microblog-api/pkg/logger"
	"github.com/sirupsen/logrus"
)

// RequestLoggerMiddleware logs every request with status and latency.
// Errors attached with c.Error are included so 500s carry their cause
// server-side while the client only sees a generic message.
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		fullURL := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			fullURL = fullURL + "?" + c.Request.URL.RawQuery
		}

		c.Next()

		statusCode := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"url":     fullURL,
			"status":  statusCode,
			"latency": time.Since(startTime).String(),
			"client":  c.ClientIP(),
		})
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			entry = entry.WithField("errors", errs.String())
		}

		switch {
		case statusCode >= 500:
			entry.Error("request failed")
		case statusCode >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}
