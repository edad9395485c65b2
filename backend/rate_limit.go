package main

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimiter is a fixed-window counter per client kept in Redis. Without a
// Redis client every request passes.
func (a *app) rateLimiter(scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if a.rdb == nil || limit <= 0 {
			return next
		}
		return rateLimit(a.rdb, a.log, scope, limit, window, next)
	}
}

func rateLimit(rdb *redis.Client, log *zap.Logger, scope string, limit int, window time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key := rateLimitKey(scope, r)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			log.Warn("rate limiter unavailable", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		ttl, _ := rdb.TTL(ctx, key).Result()
		if ttl < 0 {
			ttl = window
		}
		remaining := max(limit-int(count), 0)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if count > int64(limit) {
			rateLimitExceeded.WithLabelValues(scope).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			writeErrorDetails(w, http.StatusTooManyRequests, "rate_limited",
				"Too many requests, please try again later", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitKey identifies a client by host, without the port. The limiter
// runs ahead of authentication.
func rateLimitKey(scope string, r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ratelimit:" + scope + ":ip:" + host
}
