package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ilyalazarenkoit/eltis-test/internal/ratelimit"
)

func limitedHandler(limiter *ratelimit.Limiter, cfg LimitConfig) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(limiter, "answer", cfg)(ok)
}

func TestRateLimitHeadersOnSuccess(t *testing.T) {
	handler := limitedHandler(ratelimit.New(), LimitConfig{Window: time.Minute, Max: 5})

	req := httptest.NewRequest(http.MethodPost, "/api/answer", nil)
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("limit header = %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Fatalf("remaining header = %q", got)
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatalf("missing reset header")
	}
}

func TestRateLimitRejectsOverQuota(t *testing.T) {
	handler := limitedHandler(ratelimit.New(), LimitConfig{Window: time.Minute, Max: 2})

	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/answer", nil)
		req.Header.Set("User-Agent", "test-agent")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	request()
	request()
	rec := request()

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}

	var resp struct {
		Error     string `json:"error"`
		RateLimit struct {
			RetryAfter int   `json:"retryAfter"`
			ResetTime  int64 `json:"resetTime"`
			Limit      int   `json:"limit"`
			Remaining  int   `json:"remaining"`
		} `json:"rateLimit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" || resp.RateLimit.Limit != 2 || resp.RateLimit.Remaining != 0 {
		t.Fatalf("got %+v", resp)
	}
	if resp.RateLimit.RetryAfter <= 0 || resp.RateLimit.RetryAfter > 60 {
		t.Fatalf("retryAfter = %d", resp.RateLimit.RetryAfter)
	}
	if resp.RateLimit.ResetTime <= time.Now().Add(-time.Minute).UnixMilli() {
		t.Fatalf("resetTime = %d", resp.RateLimit.ResetTime)
	}
}

func TestRateLimitKeysByClientIdentity(t *testing.T) {
	handler := limitedHandler(ratelimit.New(), LimitConfig{Window: time.Minute, Max: 1})

	request := func(ip, agent string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/answer", nil)
		req.Header.Set("X-Forwarded-For", ip)
		req.Header.Set("User-Agent", agent)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := request("1.2.3.4", "ua"); code != http.StatusOK {
		t.Fatalf("first client: %d", code)
	}
	if code := request("1.2.3.4", "ua"); code != http.StatusTooManyRequests {
		t.Fatalf("same client second request: %d", code)
	}
	if code := request("5.6.7.8", "ua"); code != http.StatusOK {
		t.Fatalf("different ip: %d", code)
	}
	if code := request("1.2.3.4", "other-ua"); code != http.StatusOK {
		t.Fatalf("different agent: %d", code)
	}
}

func TestClientIPResolution(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("remote addr: got %q", got)
	}

	req.Header.Set("X-Real-IP", "2.2.2.2")
	if got := clientIP(req); got != "2.2.2.2" {
		t.Fatalf("x-real-ip: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "3.3.3.3, 4.4.4.4")
	if got := clientIP(req); got != "3.3.3.3" {
		t.Fatalf("x-forwarded-for: got %q", got)
	}
}
