package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	router.POST("/api/feedback", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "accepted"})
	})
	return router
}

func submit(router *gin.Engine, remoteAddr string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/feedback", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_AllowsNormalRequests(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(10, 10))

	if code := submit(router, "192.168.1.1:12345"); code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, code)
	}
}

func TestRateLimit_BlocksExcessiveRequests(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(1, 2)) // 1 rps, burst 2

	// Burst is 2, so rapid-fire submissions past that must get 429.
	var lastCode int
	for i := 0; i < 5; i++ {
		lastCode = submit(router, "10.0.0.1:12345")
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("expected status %d after burst exceeded, got %d", http.StatusTooManyRequests, lastCode)
	}
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(1, 1))

	if code := submit(router, "10.0.0.1:12345"); code != http.StatusOK {
		t.Errorf("IP1 first request: expected %d, got %d", http.StatusOK, code)
	}

	// A second client keeps its own burst even after the first spent theirs.
	if code := submit(router, "10.0.0.2:12345"); code != http.StatusOK {
		t.Errorf("IP2 first request: expected %d, got %d", http.StatusOK, code)
	}
}
