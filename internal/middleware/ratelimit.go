package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/cache"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger *slog.Logger
	Cache  *cache.Cache
	// Auth rate limiting (per IP) for the passkey and sign-in endpoints.
	AuthEnabled bool
	AuthRPS     int // Requests per second
	AuthBurst   int
	// RPC rate limiting (per signed-in user). Zero disables it.
	RPCPerMinute int
	RPCBurst     int
}

// RateLimitIP returns middleware that rate limits requests per client IP.
// Used for the auth endpoints to slow down credential stuffing.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.AuthEnabled {
		return passThrough
	}
	limit := cache.PerSecond(cfg.AuthRPS, cfg.AuthBurst)
	return cfg.limiter(cache.LimitScopeAuth, limit, false, func(r *http.Request) (string, slog.Attr) {
		ip := getClientIP(r)
		return ip, slog.String("ip", ip)
	})
}

// RateLimitUser returns middleware that rate limits requests per signed-in user.
// Must be applied after LoadSession; anonymous requests pass through.
func RateLimitUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	limit := cache.PerMinute(cfg.RPCPerMinute, cfg.RPCBurst)
	if limit.Unlimited() {
		return passThrough
	}
	return cfg.limiter(cache.LimitScopeRPC, limit, true, func(r *http.Request) (string, slog.Attr) {
		user := auth.UserFromContext(r.Context())
		if user == nil {
			return "", slog.Attr{}
		}
		return user.ID, slog.String("user_id", user.ID)
	})
}

func passThrough(next http.Handler) http.Handler { return next }

// limiter spends one request of the subject's allowance per request. An
// empty subject skips the check. Cache errors let the request through.
func (cfg RateLimitConfig) limiter(scope string, limit cache.Limit, headers bool, subject func(*http.Request) (string, slog.Attr)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.Cache == nil || limit.Unlimited() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, attr := subject(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := cfg.Cache.Allow(r.Context(), scope, key, limit)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("scope", scope),
					slog.String("error", err.Error()),
					attr,
				)
				next.ServeHTTP(w, r)
				return
			}

			if headers {
				setRateLimitHeaders(w, limit, result)
			}

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("scope", scope),
					attr,
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Duration("retry_after", result.RetryAfter),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders reports the burst, what is left of it and when it is
// fully refilled.
func setRateLimitHeaders(w http.ResponseWriter, limit cache.Limit, result *cache.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// writeRateLimitError writes a 429 with Retry-After rounded up to whole seconds.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := max(int(math.Ceil(retryAfter.Seconds())), 1)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", seconds))
}

// getClientIP returns the host part of RemoteAddr. Forwarding headers are
// client controlled; the router rewrites RemoteAddr from them only when the
// deployment trusts its proxy.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
