package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// ScanLimiter throttles the public scan endpoints per client IP. State lives
// in process memory; the scan window is short enough that losing counters on
// restart is acceptable.
type ScanLimiter struct {
	capacity  int
	rate      int
	mu        sync.Mutex
	state     map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// Buckets idle at least this long have fully refilled and carry no state
// worth keeping.
const bucketIdleTTL = 2 * time.Minute

type bucket struct {
	tokens int
	last   time.Time
}

// NewScanLimiter creates a limiter with burst capacity and a per-minute refill rate.
func NewScanLimiter(capacity, perMinute int) *ScanLimiter {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &ScanLimiter{
		capacity:  capacity,
		rate:      perMinute,
		state:     make(map[string]*bucket),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Handler returns a gin handler enforcing per-IP limits.
func (l *ScanLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			response.Error(c, appErrors.New("RATE_LIMITED", http.StatusTooManyRequests, "too many scan attempts"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (l *ScanLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets untouched for longer than the idle TTL. Runs at most
// once per minute, under the limiter lock.
func (l *ScanLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for key, b := range l.state {
		if now.Sub(b.last) >= bucketIdleTTL {
			delete(l.state, key)
		}
	}
}
