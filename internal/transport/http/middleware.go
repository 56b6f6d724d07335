package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestLogger writes one access line per operator API call. Server
// errors are raised to error level so they stand out from the status
// polling the register UI does.
func RequestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client", clientAddr(c.Request.RemoteAddr),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Errorw("api request failed", fields...)
			return
		}
		log.Infow("api request", fields...)
	}
}

// RateLimit applies a per-client token bucket. The operator API only
// ever serves the handful of devices on the store LAN, so buckets are
// kept for the life of the process.
func RateLimit(rps, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		addr := clientAddr(c.Request.RemoteAddr)
		mu.Lock()
		lim := buckets[addr]
		if lim == nil {
			lim = rate.NewLimiter(rate.Limit(rps), burst)
			buckets[addr] = lim
		}
		mu.Unlock()

		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// clientAddr strips the port; RemoteAddr is not guaranteed to carry
// one.
func clientAddr(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
