package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestScanLimiterAllowsWithinBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewScanLimiter(2, 60)

	r := gin.New()
	r.GET("/scan", limiter.Handler(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/scan", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/scan", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestScanLimiterEvictsIdleBuckets(t *testing.T) {
	limiter := NewScanLimiter(5, 60)
	base := time.Now()
	limiter.now = func() time.Time { return base }

	limiter.allow("10.0.0.1")
	limiter.allow("10.0.0.2")
	assert.Len(t, limiter.state, 2)

	// One client keeps scanning past the idle TTL, the other goes quiet.
	limiter.now = func() time.Time { return base.Add(bucketIdleTTL) }
	limiter.allow("10.0.0.1")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	_, stale := limiter.state["10.0.0.2"]
	assert.False(t, stale)
	_, active := limiter.state["10.0.0.1"]
	assert.True(t, active)
}

func TestScanLimiterIsolatesClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewScanLimiter(1, 60)

	r := gin.New()
	r.GET("/scan", limiter.Handler(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRecorder()
	reqA := httptest.NewRequest(http.MethodGet, "/scan", nil)
	reqA.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(first, reqA)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	reqB := httptest.NewRequest(http.MethodGet, "/scan", nil)
	reqB.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(second, reqB)
	assert.Equal(t, http.StatusOK, second.Code)
}
