package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roomiematch/roomiematch/backend/model"
	"github.com/roomiematch/roomiematch/backend/store"
)

// downStore fails every call a handler on the degraded paths makes.
type downStore struct {
	store.Store
}

var errDown = errors.New("connection refused")

func (downStore) Ping(context.Context) error { return errDown }
func (downStore) Stats(context.Context, time.Time) (*store.Stats, error) {
	return nil, errDown
}
func (downStore) List(context.Context, store.ListQuery) ([]*model.User, int, error) {
	return nil, 0, errDown
}

func TestRouting(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	t.Run("Index", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, apiVersion, body["version"])
		assert.Contains(t, body["endpoints"], "users")
	})

	t.Run("Not Found", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/nothing-here", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "not_found", body["error"])
		assert.Equal(t, "/api/nothing-here", body["path"])
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		w := doRequest(t, h, http.MethodDelete, "/health", "", nil)
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, "invalid_method", decodeBody(t, w)["error"])
	})

	t.Run("Rejects Non JSON Bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("email=a&password=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("Favicon", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/favicon.ico", "", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestHealth(t *testing.T) {
	t.Run("Connected", func(t *testing.T) {
		a := newTestApp(t)
		w := doRequest(t, a.routes(), http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "OK", body["status"])
		assert.Equal(t, "connected", body["database"])
		assert.Equal(t, "test", body["environment"])
	})

	t.Run("Degraded", func(t *testing.T) {
		a := newTestApp(t)
		a.store = downStore{}
		w := doRequest(t, a.routes(), http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "DEGRADED", body["status"])
		assert.Equal(t, "disconnected", body["database"])
	})
}

func TestSecurityHeaders(t *testing.T) {
	a := newTestApp(t)
	w := doRequest(t, a.routes(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestCORS(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	t.Run("Allowed Origin", func(t *testing.T) {
		w := preflight("http://localhost:3000")
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("Unknown Origin", func(t *testing.T) {
		w := preflight("https://evil.example")
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	user := createTestUser(t, a, "metrics@example.com", "testpass123")
	doRequest(t, h, http.MethodGet, "/api/users/"+user.ID+"/compatible", user.Token, nil)

	w := doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "roomiematch_http_requests_total")
	assert.Contains(t, body, `route="/api/users/{userId}/compatible"`)
	assert.Contains(t, body, `roomiematch_match_searches_total{outcome="incomplete_profile"}`)
}

func TestRateLimiter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	t.Run("Disabled Without Redis", func(t *testing.T) {
		a := newTestApp(t)
		h := a.rateLimiter("api", 1, time.Minute)(ok)
		for range 3 {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusTeapot, w.Code)
			assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("Fails Open When Redis Is Down", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 50 * time.Millisecond,
			MaxRetries:  -1,
		})
		t.Cleanup(func() { _ = rdb.Close() })

		h := rateLimit(rdb, zap.NewNop(), "api", 1, time.Minute, ok)
		for range 2 {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusTeapot, w.Code)
		}
	})
}

func TestRateLimitKey(t *testing.T) {
	req := func(remote string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		return r
	}

	assert.Equal(t, "ratelimit:auth:ip:1.2.3.4", rateLimitKey("auth", req("1.2.3.4:1000")))
	assert.Equal(t, rateLimitKey("auth", req("1.2.3.4:1000")), rateLimitKey("auth", req("1.2.3.4:1001")))
	assert.NotEqual(t, rateLimitKey("auth", req("1.2.3.4:1000")), rateLimitKey("api", req("1.2.3.4:1000")))
	assert.Equal(t, "ratelimit:api:ip:::1", rateLimitKey("api", req("[::1]:8080")))
	// RealIP leaves a bare address without a port
	assert.Equal(t, "ratelimit:api:ip:10.0.0.7", rateLimitKey("api", req("10.0.0.7")))
}

func TestRateLimiterRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	scope := "test-" + strings.ReplaceAll(time.Now().Format(time.RFC3339Nano), ":", "")
	t.Cleanup(func() { rdb.Del(context.Background(), "ratelimit:"+scope+":ip:1.2.3.4", "ratelimit:"+scope+":ip:5.6.7.8") })

	const limit = 3
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := rateLimit(rdb, zap.NewNop(), scope, limit, time.Minute, ok)

	send := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	for i := range limit {
		w := send("1.2.3.4:" + strconv.Itoa(40000+i))
		require.Equal(t, http.StatusTeapot, w.Code, "request %d", i+1)
		assert.Equal(t, strconv.Itoa(limit-i-1), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := send("1.2.3.4:49999")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decodeBody(t, w)["error"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusTeapot, send("5.6.7.8:40000").Code, "other hosts keep their own window")
}
