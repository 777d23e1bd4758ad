package limiter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/resp"
)

func TestMemoryLimiter_Burst(t *testing.T) {
	l := NewMemoryLimiter(&Config{Rate: 1, Window: time.Minute, Burst: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := l.Allow(ctx, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	result, err := l.Allow(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Fatal("request over burst should be denied")
	}
	if result.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", result.RetryAfter)
	}
}

func TestMemoryLimiter_Refill(t *testing.T) {
	// 100 tokens/s: after draining the bucket a short wait restores quota
	l := NewMemoryLimiter(&Config{Rate: 100, Window: time.Second, Burst: 1})
	ctx := context.Background()

	if result, _ := l.Allow(ctx, "k"); !result.Allowed {
		t.Fatal("first request should be allowed")
	}
	if result, _ := l.Allow(ctx, "k"); result.Allowed {
		t.Fatal("second immediate request should be denied")
	}

	time.Sleep(50 * time.Millisecond)

	result, err := l.Allow(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Fatal("request after refill should be allowed")
	}
}

func TestMemoryLimiter_KeysIsolated(t *testing.T) {
	l := NewMemoryLimiter(&Config{Rate: 1, Window: time.Minute, Burst: 1})
	ctx := context.Background()

	if result, _ := l.Allow(ctx, "ip:1.1.1.1"); !result.Allowed {
		t.Fatal("first key should be allowed")
	}
	if result, _ := l.Allow(ctx, "ip:1.1.1.1"); result.Allowed {
		t.Fatal("first key should be exhausted")
	}
	if result, _ := l.Allow(ctx, "ip:2.2.2.2"); !result.Allowed {
		t.Fatal("second key should have its own bucket")
	}
}

// stubLimiter 返回预设结果，用于中间件测试
type stubLimiter struct {
	result *Result
	err    error
	keys   []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (*Result, error) {
	s.keys = append(s.keys, key)
	return s.result, s.err
}

func okHandler() (http.Handler, *int) {
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}), &calls
}

func TestMiddleware_Allowed(t *testing.T) {
	stub := &stubLimiter{result: &Result{Allowed: true, Remaining: 7}}
	next, calls := okHandler()
	handler := Middleware(stub, zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if *calls != 1 {
		t.Fatalf("expected next handler to run once, ran %d times", *calls)
	}
	if got := rw.Header().Get("X-RateLimit-Remaining"); got != "7" {
		t.Fatalf("expected remaining header 7, got %q", got)
	}
	if len(stub.keys) != 1 || stub.keys[0] != "ip:10.0.0.1" {
		t.Fatalf("unexpected limiter keys: %v", stub.keys)
	}
}

func TestMiddleware_Denied(t *testing.T) {
	stub := &stubLimiter{result: &Result{Allowed: false, Remaining: 0, RetryAfter: 30 * time.Second}}
	next, calls := okHandler()
	handler := Middleware(stub, zap.NewNop())(next)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	if rw.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rw.Code)
	}
	if *calls != 0 {
		t.Fatal("next handler should not run when denied")
	}
	if got := rw.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected Retry-After 30, got %q", got)
	}

	var body resp.Body
	if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Code != resp.CodeInvalidParam {
		t.Fatalf("unexpected business code %d", body.Code)
	}
}

func TestMiddleware_DeniedRetryAfterFloor(t *testing.T) {
	stub := &stubLimiter{result: &Result{Allowed: false, RetryAfter: 100 * time.Millisecond}}
	next, _ := okHandler()
	handler := Middleware(stub, zap.NewNop())(next)

	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/api/orders", nil))

	if got := rw.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After floored to 1, got %q", got)
	}
}

func TestMiddleware_FailOpen(t *testing.T) {
	stub := &stubLimiter{err: errors.New("redis down")}
	next, calls := okHandler()
	handler := Middleware(stub, zap.NewNop())(next)

	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/api/orders", nil))

	if rw.Code != http.StatusOK {
		t.Fatalf("expected request to pass on limiter failure, got %d", rw.Code)
	}
	if *calls != 1 {
		t.Fatal("next handler should run when limiter errors")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.168.1.5:12345",
			want:       "192.168.1.5",
		},
		{
			name:       "x-forwarded-for first hop",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Fatalf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
