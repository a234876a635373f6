package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hrdash/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

// Counter counts hits for key inside a fixed window and reports how long
// until the window resets.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
}

type rateLimiter struct {
	limit   int
	window  time.Duration
	keyFn   RateLimitKeyFunc
	counter Counter
	scope   string
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

func WithCounter(counter Counter) RateLimitOption {
	return func(rl *rateLimiter) {
		if counter != nil {
			rl.counter = counter
		}
	}
}

func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter("global", limit, window, actorOrIPKey, opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveRateLimit applies tighter limits to login attempts and directory
// exports on top of the global limit.
func SensitiveRateLimit(baseLimit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/12, 1)
	exportLimit := max(baseLimit/6, 1)
	authByIP := newRateLimiter("auth_ip", authLimit, window, clientIPKey, opts...)
	authByEmail := newRateLimiter("auth_email", authLimit, window, AuthEmailOrIPKey("email"), opts...)
	exportByActor := newRateLimiter("export", exportLimit, window, actorOrIPKey, opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				if !authByIP.enforce(w, r) {
					return
				}
				if !authByEmail.enforce(w, r) {
					return
				}
			case sensitiveScopeExport:
				if !exportByActor.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	normalizedField := strings.TrimSpace(field)
	if normalizedField == "" {
		normalizedField = "email"
	}
	return func(r *http.Request) string {
		email := extractJSONField(r, normalizedField)
		if email == "" {
			return clientIPKey(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.CompanyID + ":" + user.UserID
	}
	return clientIPKey(r)
}

// clientIPKey keys on the connection address. Forwarding headers are only
// honoured when TrustProxy has rewritten RemoteAddr upstream.
func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func newRateLimiter(scope string, limit int, window time.Duration, keyFn RateLimitKeyFunc, opts ...RateLimitOption) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	rl := &rateLimiter{
		limit:  limit,
		window: window,
		keyFn:  keyFn,
		scope:  scope,
	}
	for _, opt := range opts {
		opt(rl)
	}
	if rl.counter == nil {
		rl.counter = NewMemoryCounter()
	}
	return rl
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 {
		return true
	}

	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}

	count, resetAfter, err := rl.counter.Incr(r.Context(), rl.scope+":"+key, rl.window)
	if err != nil {
		slog.Warn("rate limit counter unavailable", "scope", rl.scope, "err", err)
		return true
	}
	remaining := rl.limit - count
	resetIn := durationSeconds(resetAfter)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))

	if count > rl.limit {
		w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
		slog.Warn("rate limit exceeded",
			"scope", rl.scope,
			"key", key,
			"path", r.URL.Path,
			"method", r.Method,
			"limit", rl.limit,
			"windowSec", int(rl.window.Seconds()),
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}

	return true
}

type rateBucket struct {
	count int
	reset time.Time
}

// sweepThreshold forces an expiry sweep once the map holds this many keys,
// even if the periodic sweep is not due yet. After a forced sweep the next
// threshold is twice the surviving size.
const sweepThreshold = 10000

// MemoryCounter keeps fixed-window buckets in process. Expired buckets are
// swept once per window, or earlier when the map grows past sweepAt.
type MemoryCounter struct {
	mu        sync.Mutex
	clients   map[string]*rateBucket
	nextSweep time.Time
	sweepAt   int
	now       func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{clients: map[string]*rateBucket{}, now: time.Now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if now.After(c.nextSweep) || len(c.clients) >= max(c.sweepAt, sweepThreshold) {
		c.sweep(now)
		c.nextSweep = now.Add(window)
		c.sweepAt = 2 * len(c.clients)
	}
	bucket, ok := c.clients[key]
	if !ok || now.After(bucket.reset) {
		bucket = &rateBucket{count: 0, reset: now.Add(window)}
		c.clients[key] = bucket
	}
	bucket.count++
	return bucket.count, bucket.reset.Sub(now), nil
}

// sweep drops buckets whose window has ended. Callers hold c.mu.
func (c *MemoryCounter) sweep(now time.Time) {
	for key, bucket := range c.clients {
		if now.After(bucket.reset) {
			delete(c.clients, key)
		}
	}
}

// Len reports how many buckets are currently held.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func durationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	seconds := int(d.Seconds())
	if seconds <= 0 {
		return 1
	}
	return seconds
}

func extractJSONField(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if !strings.Contains(contentType, "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(raw) == 0 {
		return ""
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type sensitiveScope string

const (
	sensitiveScopeNone   sensitiveScope = ""
	sensitiveScopeAuth   sensitiveScope = "auth"
	sensitiveScopeExport sensitiveScope = "export"
)

func sensitiveRateScope(r *http.Request) sensitiveScope {
	if r == nil {
		return sensitiveScopeNone
	}
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	path := normalizedAPIPath(r.URL.Path)
	switch {
	case method == http.MethodPost && path == "/auth/login":
		return sensitiveScopeAuth
	case method == http.MethodGet && path == "/employees/export.pdf":
		return sensitiveScopeExport
	}
	return sensitiveScopeNone
}

func normalizedAPIPath(path string) string {
	cleaned := strings.TrimSpace(path)
	cleaned = strings.TrimPrefix(cleaned, "/api/v1")
	cleaned = strings.TrimSuffix(cleaned, "/")
	if cleaned == "" {
		return "/"
	}
	if !strings.HasPrefix(cleaned, "/") {
		return "/" + cleaned
	}
	return cleaned
}
