package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per key. Idle buckets are dropped by Sweep.
type KeyedLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	buckets map[string]*keyedBucket
}

type keyedBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewKeyedLimiter creates a limiter that allows rps events per second per key with the given burst.
func NewKeyedLimiter(rps float64, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{rps: rate.Limit(rps), burst: burst, buckets: make(map[string]*keyedBucket)}
}

// Allow reports whether one event for key may happen now.
func (k *KeyedLimiter) Allow(key string) bool {
	return k.allowAt(key, time.Now())
}

func (k *KeyedLimiter) allowAt(key string, now time.Time) bool {
	k.mu.Lock()
	b, ok := k.buckets[key]
	if !ok {
		b = &keyedBucket{lim: rate.NewLimiter(k.rps, k.burst)}
		k.buckets[key] = b
	}
	b.seen = now
	k.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// Sweep removes buckets not used since the cutoff.
func (k *KeyedLimiter) Sweep(cutoff time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for key, b := range k.buckets {
		if b.seen.Before(cutoff) {
			delete(k.buckets, key)
			n++
		}
	}
	return n
}

// RateLimit rejects requests over the per-client budget with 429.
func RateLimit(k *KeyedLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if k.Allow(c.RealIP()) {
				return next(c)
			}
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
				"status":  http.StatusTooManyRequests,
				"message": "rate limit exceeded",
			})
		}
	}
}
