package limiter

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ErrRateLimited indicates a client exceeded its request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter enforces per-client limits using local token buckets.
type Limiter struct {
	enabled bool

	rps   float64
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// Config contains parameters for limiter construction.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// New creates a Limiter from the supplied configuration.
func New(cfg Config) *Limiter {
	if !cfg.Enabled {
		return &Limiter{enabled: false}
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	return &Limiter{
		enabled: true,
		rps:     cfg.RequestsPerSecond,
		burst:   cfg.Burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the client may perform the next request.
func (l *Limiter) Allow(client string) error {
	if !l.enabled || client == "" {
		return nil
	}
	l.mu.Lock()
	bucket := l.buckets[client]
	if bucket == nil {
		limit := rate.Inf
		if l.rps > 0 {
			limit = rate.Limit(l.rps)
		}
		bucket = rate.NewLimiter(limit, l.burst)
		l.buckets[client] = bucket
	}
	l.mu.Unlock()

	if !bucket.Allow() {
		return ErrRateLimited
	}
	return nil
}

// Middleware rejects requests over budget with 429, keyed by client IP.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := l.Allow(c.ClientIP()); err != nil {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
