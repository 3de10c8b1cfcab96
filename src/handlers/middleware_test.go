package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"

	"github.com/username/tradefolio/src/logger"
)

func TestRateLimitMiddlewareBlocksAfterBurst(t *testing.T) {
	logger.InitLogger("error")

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitMiddleware(rate.Limit(0), 1)(okHandler)

	doRequest := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/user/has-data", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := doRequest("203.0.113.10:51000"); got != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", got, http.StatusOK)
	}
	if got := doRequest("203.0.113.10:51001"); got != http.StatusTooManyRequests {
		t.Errorf("second request from same IP status = %d, want %d", got, http.StatusTooManyRequests)
	}

	// A different client address gets its own bucket.
	if got := doRequest("203.0.113.11:51000"); got != http.StatusOK {
		t.Errorf("request from other IP status = %d, want %d", got, http.StatusOK)
	}
}

func TestIPRateLimiterReturnsSameBucketPerIP(t *testing.T) {
	limiter := newIPRateLimiter(rate.Limit(1), 5)

	first := limiter.limiterFor("198.51.100.7")
	second := limiter.limiterFor("198.51.100.7")
	if first != second {
		t.Error("limiterFor returned distinct limiters for the same IP")
	}

	other := limiter.limiterFor("198.51.100.8")
	if other == first {
		t.Error("limiterFor shared one limiter across distinct IPs")
	}
}
