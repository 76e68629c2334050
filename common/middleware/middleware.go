package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// PanicRecoverer recovers from panic of underlying handlers and answers 500
func PanicRecoverer() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"panicReason": r,
					"path":        c.Request.URL.Path,
				}).Error("got panic from underlying handler")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

// RequestLogger logs one line per request with logrus, at Debug for successful ones
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		clog := log.WithFields(log.Fields{
			"httpMethod": c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latencyMs":  time.Since(start).Milliseconds(),
		})
		if len(c.Errors) > 0 {
			clog = clog.WithField("errors", c.Errors.String())
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			clog.Warn("request failed")
			return
		}
		clog.Debug("request served")
	}
}

// BodyLimiter caps the size of request bodies
func BodyLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
