package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	mw := RateLimit(1, 2)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/messaging/twilio/webhook", nil)
		req.Header.Set("X-Real-Ip", "203.0.113.9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("expected first two requests allowed, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected third request limited, got %d", codes[2])
	}
}

func TestRateLimitTracksIPsIndependently(t *testing.T) {
	limiter := NewRateLimiter(1, 1)

	if !limiter.Allow("203.0.113.9") {
		t.Fatal("expected first request from first ip allowed")
	}
	if limiter.Allow("203.0.113.9") {
		t.Fatal("expected second request from first ip limited")
	}
	if !limiter.Allow("203.0.113.10") {
		t.Fatal("expected request from second ip allowed")
	}
}
