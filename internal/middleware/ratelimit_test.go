package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLimiter(rate int, whitelist ...string) *RateLimiter {
	return NewRateLimiter(rate, time.Minute, whitelist, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAllowWithinWindow(t *testing.T) {
	rl := testLimiter(2)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request in the window should be blocked")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("another address has its own window")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("a new window should reset the budget")
	}
}

func TestWhitelistBypassesLimit(t *testing.T) {
	rl := testLimiter(0, " 127.0.0.1 ")
	for range 5 {
		if !rl.Allow("127.0.0.1") {
			t.Fatal("whitelisted address was limited")
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("a zero rate should block everyone else")
	}
}

func TestPruneDropsIdleWindows(t *testing.T) {
	rl := testLimiter(1)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("10.0.0.1")

	now = now.Add(3 * time.Minute)
	rl.prune()
	if rl.Stats().TrackedIPs != 0 {
		t.Errorf("TrackedIPs = %d", rl.Stats().TrackedIPs)
	}
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	rl := testLimiter(1)
	blocked := 0
	rl.OnBlocked(func() { blocked++ })

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/lines", nil)
		req.RemoteAddr = "192.0.2.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusNoContent {
		t.Fatalf("first request: status %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if blocked != 1 {
		t.Errorf("blocked = %d", blocked)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.9"},
		{"forwarded with port", map[string]string{"X-Forwarded-For": "203.0.113.9:4000"}, "10.0.0.1:80", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.1:80", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
