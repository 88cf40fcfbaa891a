package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const bodyContextKey = "httpx.body"

// Body returns the JSON value decoded by JSONBody, if any.
func Body(c *gin.Context) (any, bool) {
	return c.Get(bodyContextKey)
}

// JSONBody decodes application/json request bodies up to limit bytes and
// stores the result for Body. Only objects and arrays are accepted at the top
// level and an empty body decodes to an empty object. The raw bytes are put
// back on the request so handlers may still read them.
func JSONBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || !strings.EqualFold(c.ContentType(), gin.MIMEJSON) {
			c.Next()
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
		c.Request.Body.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request entity too large"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		var value any
		trimmed := bytes.TrimSpace(raw)
		switch {
		case len(trimmed) == 0:
			value = map[string]any{}
		case trimmed[0] != '{' && trimmed[0] != '[':
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object or array"})
			return
		default:
			if err := json.Unmarshal(trimmed, &value); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed JSON body"})
				return
			}
		}

		c.Set(bodyContextKey, value)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// RateLimiter decides whether the next request may proceed.
type RateLimiter interface {
	Allow() bool
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) RateLimiter {
	return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}

func rateLimit(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, please retry shortly"})
			return
		}
		c.Next()
	}
}
