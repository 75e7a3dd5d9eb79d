package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"average-calculator/internal/metrics"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/numbers/p", nil))

	if seen == "" {
		t.Fatal("expected a generated request id in context")
	}
	if got := rr.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("expected response header %q, got %q", seen, got)
	}
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	h := RequestID(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected abc-123, got %q", got)
	}
}

func TestRecover_ConvertsPanicTo500(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/numbers/p", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal server error" || body["code"] != "internal" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestLogging_PassesThroughStatus(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rr.Code)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	m := metrics.NewRegistry()
	h := RateLimit(NewClientLimiter(1, 2, false, clockwork.NewFakeClock()), m)(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/numbers/p", nil)
		req.RemoteAddr = ip + ":5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	tests := []struct {
		ip   string
		want int
	}{
		{"10.0.0.1", http.StatusOK},
		{"10.0.0.1", http.StatusOK},
		{"10.0.0.1", http.StatusTooManyRequests},
		{"10.0.0.2", http.StatusOK},
	}
	for i, tt := range tests {
		if got := send(tt.ip); got != tt.want {
			t.Fatalf("request %d from %s: expected %d, got %d", i, tt.ip, tt.want, got)
		}
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Fatalf("expected 1 rate limited, got %v", got)
	}
}

func TestRateLimit_IgnoresForwardedForByDefault(t *testing.T) {
	m := metrics.NewRegistry()
	limiter := NewClientLimiter(1, 1, false, clockwork.NewFakeClock())
	h := RateLimit(limiter, m)(okHandler())

	limited := 0
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodGet, "/numbers/p", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 99 {
		t.Fatalf("expected 99 limited requests, got %d", limited)
	}
	if n := limiter.Len(); n != 1 {
		t.Fatalf("expected a single tracked client, got %d", n)
	}
}

func TestRateLimit_TrustedProxyKeysOnForwardedFor(t *testing.T) {
	h := RateLimit(NewClientLimiter(1, 1, true, clockwork.NewFakeClock()), metrics.NewRegistry())(okHandler())

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodGet, "/numbers/p", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", client+", 10.0.0.1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("client %s behind proxy: expected 200, got %d", client, rr.Code)
		}
	}
}

func TestClientLimiter_SweepDropsIdleClients(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewClientLimiter(1, 1, false, clock)

	l.Allow("a")
	clock.Advance(time.Minute)
	l.Allow("b")

	if n := l.Sweep(time.Minute); n != 1 {
		t.Fatalf("expected 1 dropped client, got %d", n)
	}
	if n := l.Len(); n != 1 {
		t.Fatalf("expected 1 remaining client, got %d", n)
	}
	// a returning client starts with a fresh bucket
	if !l.Allow("a") {
		t.Fatal("expected swept client to be allowed again")
	}
}

func TestClientLimiter_StartCleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewClientLimiter(1, 1, false, clock)
	for i := 0; i < 10; i++ {
		l.Allow(fmt.Sprintf("client-%d", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.StartCleanup(ctx, time.Second, time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for l.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected idle clients to be swept, %d left", l.Len())
		}
		clock.Advance(time.Second)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRateLimit_DisabledWithNilLimiter(t *testing.T) {
	h := RateLimit(nil, metrics.NewRegistry())(okHandler())
	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	tests := []struct {
		name       string
		trustProxy bool
		want       string
	}{
		{"peer address by default", false, "192.0.2.7"},
		{"forwarded for behind trusted proxy", true, "203.0.113.9"},
	}
	for _, tt := range tests {
		if got := clientIP(req, tt.trustProxy); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientIP(req, true); got != "192.0.2.7" {
		t.Errorf("expected fallback to peer address, got %s", got)
	}
}
