package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"hrdash/internal/domain/auth"
	"hrdash/internal/requestctx"
)

func noContent() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRateLimitUsesUserKeyBeforeIPFallback(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())

	userCtx := requestctx.WithUser(context.Background(), auth.UserContext{
		CompanyID: "acme",
		UserID:    "ops@example.com",
	})

	first := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil).WithContext(userCtx)
	first.RemoteAddr = "198.51.100.11:2222"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil).WithContext(userCtx)
	second.RemoteAddr = "198.51.100.12:3333"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by user key, got %d", secondRec.Code)
	}
}

func TestRateLimitFallsBackToIP(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())

	first := httptest.NewRequest(http.MethodGet, "/api/v1/permissions", nil)
	first.RemoteAddr = "203.0.113.10:4444"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/api/v1/permissions", nil)
	second.RemoteAddr = "203.0.113.10:5555"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled by ip key, got %d", secondRec.Code)
	}

	forwarded := httptest.NewRequest(http.MethodGet, "/api/v1/permissions", nil)
	forwarded.RemoteAddr = "203.0.113.10:6666"
	forwarded.Header.Set("X-Forwarded-For", "192.0.2.99, 203.0.113.10")
	forwardedRec := httptest.NewRecorder()
	limited.ServeHTTP(forwardedRec, forwarded)
	if forwardedRec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected untrusted forwarded header to be ignored, got %d", forwardedRec.Code)
	}
}

func TestRateLimitForwardedForBehindTrustedProxy(t *testing.T) {
	tests := []struct {
		name    string
		trusted bool
		want    int
	}{
		{name: "ignored without proxy", trusted: false, want: http.StatusTooManyRequests},
		{name: "honoured behind proxy", trusted: true, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limited := TrustProxy(tt.trusted)(RateLimit(1, time.Minute)(noContent()))

			first := httptest.NewRequest(http.MethodGet, "/api/v1/permissions", nil)
			first.RemoteAddr = "203.0.113.10:5555"
			first.Header.Set("X-Forwarded-For", "192.0.2.1")
			limited.ServeHTTP(httptest.NewRecorder(), first)

			second := httptest.NewRequest(http.MethodGet, "/api/v1/permissions", nil)
			second.RemoteAddr = "203.0.113.10:5556"
			second.Header.Set("X-Forwarded-For", "192.0.2.2")
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, second)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestMemoryCounterSweepsExpiredBuckets(t *testing.T) {
	counter := NewMemoryCounter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	counter.now = func() time.Time { return now }
	limited := TrustProxy(true)(RateLimit(1, time.Minute, WithCounter(counter))(noContent()))

	send := func(ip string) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
		req.RemoteAddr = "203.0.113.10:5555"
		req.Header.Set("X-Forwarded-For", ip)
		limited.ServeHTTP(httptest.NewRecorder(), req)
	}

	for i := 0; i < 5000; i++ {
		send(fmt.Sprintf("10.%d.%d.%d", i/65536, (i/256)%256, i%256))
	}
	if got := counter.Len(); got != 5000 {
		t.Fatalf("expected 5000 live buckets, got %d", got)
	}

	now = now.Add(time.Hour)
	send("192.0.2.50")
	if got := counter.Len(); got != 1 {
		t.Fatalf("expected expired buckets to be swept, got %d", got)
	}
}

func TestMemoryCounterForcedSweepKeepsLiveBuckets(t *testing.T) {
	counter := NewMemoryCounter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	counter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < sweepThreshold+10; i++ {
		if _, _, err := counter.Incr(ctx, fmt.Sprintf("key-%d", i), time.Minute); err != nil {
			t.Fatalf("incr: %v", err)
		}
	}
	if got := counter.Len(); got != sweepThreshold+10 {
		t.Fatalf("expected live buckets to survive a forced sweep, got %d", got)
	}

	count, _, err := counter.Incr(ctx, "key-0", time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected live bucket count to carry over, got %d", count)
	}
}

func TestRateLimitWindowReset(t *testing.T) {
	limited := RateLimit(1, 40*time.Millisecond)(noContent())

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
		req.RemoteAddr = "192.0.2.20:1111"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", code)
	}
	time.Sleep(50 * time.Millisecond)
	if code := send(); code != http.StatusNoContent {
		t.Fatalf("expected third request after window reset to pass, got %d", code)
	}
}

func TestRateLimitReturnsRetryMetadata(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())

	req1 := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
	req1.RemoteAddr = "192.0.2.30:1234"
	limited.ServeHTTP(httptest.NewRecorder(), req1)

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
	req2.RemoteAddr = "192.0.2.30:1234"
	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req2)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected throttled response, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected zero remaining, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("counter down")
}

func TestRateLimitFailsOpenWhenCounterErrors(t *testing.T) {
	limited := RateLimit(1, time.Minute, WithCounter(failingCounter{}))(noContent())
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected pass-through, got %d", i+1, rec.Code)
		}
	}
}

func TestSensitiveRateLimitScope(t *testing.T) {
	limited := SensitiveRateLimit(12, time.Minute)(noContent())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
		req.RemoteAddr = "198.51.100.40:8888"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected list request %d to bypass sensitive limits, got %d", i+1, rec.Code)
		}
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"email":"ops@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.41:9999"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if i == 0 && rec.Code != http.StatusNoContent {
			t.Fatalf("expected first login to pass, got %d", rec.Code)
		}
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected second login to be throttled, got %d", rec.Code)
		}
	}

	userCtx := requestctx.WithUser(context.Background(), auth.UserContext{CompanyID: "acme", UserID: "ops"})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees/export.pdf", nil).WithContext(userCtx)
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if i < 2 && rec.Code != http.StatusNoContent {
			t.Fatalf("expected export %d to pass, got %d", i+1, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected third export to be throttled, got %d", rec.Code)
		}
	}
}

func TestNormalizedAPIPath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/auth/login":  "/auth/login",
		"/api/v1/auth/login/": "/auth/login",
		"/api/v1":             "/",
		"auth/login":          "/auth/login",
	}
	for input, want := range tests {
		if got := normalizedAPIPath(input); got != want {
			t.Fatalf("%q: expected %q, got %q", input, want, got)
		}
	}
}

func TestMemoryCounterWindows(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter()
	counter.now = func() time.Time { return now }

	count, reset, _ := counter.Incr(context.Background(), "k", time.Minute)
	if count != 1 || reset != time.Minute {
		t.Fatalf("unexpected first hit %d %s", count, reset)
	}
	now = now.Add(20 * time.Second)
	count, reset, _ = counter.Incr(context.Background(), "k", time.Minute)
	if count != 2 || reset != 40*time.Second {
		t.Fatalf("unexpected second hit %d %s", count, reset)
	}
	now = now.Add(time.Minute)
	count, _, _ = counter.Incr(context.Background(), "k", time.Minute)
	if count != 1 {
		t.Fatalf("expected window reset, got %d", count)
	}
}

func TestRedisCounter(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	counter := NewRedisCounter(client, "hrdash:test:")

	count, reset, err := counter.Incr(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if count != 1 || reset != time.Minute {
		t.Fatalf("unexpected first hit %d %s", count, reset)
	}
	if ttl := mr.TTL("hrdash:test:k"); ttl != time.Minute {
		t.Fatalf("expected window ttl on key, got %s", ttl)
	}

	count, reset, err = counter.Incr(ctx, "k", time.Minute)
	if err != nil || count != 2 || reset <= 0 || reset > time.Minute {
		t.Fatalf("unexpected second hit %d %s %v", count, reset, err)
	}

	mr.FastForward(2 * time.Minute)
	count, _, err = counter.Incr(ctx, "k", time.Minute)
	if err != nil || count != 1 {
		t.Fatalf("expected new window after expiry, got %d %v", count, err)
	}
}

func TestRateLimitWithRedisCounterSharesBuckets(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	shared := NewRedisCounter(client, "")
	replicaA := RateLimit(1, time.Minute, WithCounter(shared))(noContent())
	replicaB := RateLimit(1, time.Minute, WithCounter(shared))(noContent())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
	req.RemoteAddr = "192.0.2.50:1000"
	recA := httptest.NewRecorder()
	replicaA.ServeHTTP(recA, req)
	if recA.Code != http.StatusNoContent {
		t.Fatalf("expected first replica to pass, got %d", recA.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
	req2.RemoteAddr = "192.0.2.50:1001"
	recB := httptest.NewRecorder()
	replicaB.ServeHTTP(recB, req2)
	if recB.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second replica to share the bucket, got %d", recB.Code)
	}
}

func TestRedisCounterUnavailableFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	limited := RateLimit(1, time.Minute, WithCounter(NewRedisCounter(client, "")))(noContent())
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected pass-through while redis is down, got %d", i+1, rec.Code)
		}
	}
}
