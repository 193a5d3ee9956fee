package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration. Scans fetch third-party
// pages, so the defaults are far below a typical API.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration // forget clients idle this long
}

// DefaultRateLimitConfig returns the per-client scan budget
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 2,
		Burst:             5,
		IdleTTL:           10 * time.Minute,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type visitors struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	clients map[string]*visitor
	swept   time.Time
	now     func() time.Time
}

func newVisitors(cfg RateLimitConfig) *visitors {
	return &visitors{cfg: cfg, clients: make(map[string]*visitor), now: time.Now}
}

// allow charges one request to ip, dropping idle clients at most once per TTL
func (v *visitors) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if v.cfg.IdleTTL > 0 && now.Sub(v.swept) > v.cfg.IdleTTL {
		for key, c := range v.clients {
			if now.Sub(c.lastSeen) > v.cfg.IdleTTL {
				delete(v.clients, key)
			}
		}
		v.swept = now
	}

	c, ok := v.clients[ip]
	if !ok {
		c = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.Burst)}
		v.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (v *visitors) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.clients)
}

// RateLimit creates a per-IP rate limiting middleware
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	return rateLimit(newVisitors(cfg))
}

func rateLimit(v *visitors) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.allow(c.ClientIP()) {
			tooMany(c)
			return
		}
		c.Next()
	}
}

// GlobalRateLimit creates a global rate limiting middleware
func GlobalRateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			tooMany(c)
			return
		}
		c.Next()
	}
}

func tooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": "rate limit exceeded",
	})
}
