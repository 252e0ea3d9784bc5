package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"lending-backoffice/internal/config"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	defaultWindow      = time.Second
	limiterIdleTimeout = 10 * time.Minute
	unknownIP          = "unknown"
)

// WindowCounter counts hits on key within a fixed window that starts with the
// first hit.
type WindowCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisWindowCounter struct {
	client redis.Cmdable
}

func (c redisWindowCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	// -1 means the key has no expiry yet, -2 that it vanished in between.
	if ttlCmd.Val() < 0 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return incrCmd.Val(), err
		}
	}
	return incrCmd.Val(), nil
}

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware limits requests per client IP. With Redis the limit is
// shared across instances as a fixed window; without it each instance keeps a
// token bucket per IP.
type RateLimiterMiddleware struct {
	counter WindowCounter
	mu      sync.Mutex
	local   map[string]*localLimiter
	cfg     config.RateLimitConfig
	window  time.Duration
	limit   int64
	logger  *slog.Logger
}

func NewRateLimiterMiddleware(cfg config.RateLimitConfig, redisClient *redis.Client, logger *slog.Logger) *RateLimiterMiddleware {
	var counter WindowCounter
	if redisClient != nil {
		counter = redisWindowCounter{client: redisClient}
	}
	return newRateLimiter(cfg, counter, logger)
}

func newRateLimiter(cfg config.RateLimitConfig, counter WindowCounter, logger *slog.Logger) *RateLimiterMiddleware {
	logger = logger.With("component", "RateLimiter")

	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	limit := int64(math.Ceil(cfg.RPS * window.Seconds()))
	if limit < 1 {
		limit = 1
	}

	switch {
	case !cfg.Enabled:
		logger.Info("Rate limiting is disabled via configuration.")
	case counter == nil:
		logger.Info("Rate limiter using in-process token buckets", "rps", cfg.RPS, "burst", cfg.Burst)
	default:
		logger.Info("Rate limiter using Redis fixed window", "limit", limit, "window", window)
	}

	return &RateLimiterMiddleware{
		counter: counter,
		local:   make(map[string]*localLimiter),
		cfg:     cfg,
		window:  window,
		limit:   limit,
		logger:  logger,
	}
}

func (rl *RateLimiterMiddleware) IsEnabled() bool {
	return rl.cfg.Enabled
}

// Run evicts idle in-process limiters until ctx is cancelled. It is a no-op
// when Redis backs the limiter.
func (rl *RateLimiterMiddleware) Run(ctx context.Context) {
	if rl.counter != nil {
		return
	}
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimiterMiddleware) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, l := range rl.local {
		if now.Sub(l.lastSeen) > limiterIdleTimeout {
			delete(rl.local, ip)
		}
	}
}

func (rl *RateLimiterMiddleware) allowLocal(ip string) bool {
	rl.mu.Lock()
	l, ok := rl.local[ip]
	if !ok {
		l = &localLimiter{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RPS), max(rl.cfg.Burst, 1))}
		rl.local[ip] = l
	}
	l.lastSeen = time.Now()
	rl.mu.Unlock()
	return l.limiter.Allow()
}

func (rl *RateLimiterMiddleware) allow(ctx context.Context, ip string) bool {
	if rl.counter == nil {
		return rl.allowLocal(ip)
	}

	key := fmt.Sprintf("ratelimit:%s", ip)
	count, err := rl.counter.Increment(ctx, key, rl.window)
	if err != nil {
		rl.logger.ErrorContext(ctx, "Redis rate limit check failed, falling back to in-process limiter", "error", err, "ip", ip)
		return rl.allowLocal(ip)
	}
	return count <= rl.limit
}

func (rl *RateLimiterMiddleware) extractIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if xRealIP != "" && net.ParseIP(xRealIP) != nil {
		return xRealIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return ip
	}
	if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
		return parsed.String()
	}

	rl.logger.Warn("Could not determine client IP for rate limiting", "remoteAddr", r.RemoteAddr, "x-forwarded-for", xff, "x-real-ip", xRealIP)
	return unknownIP
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.IsEnabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.extractIP(r)
		if ip == unknownIP {
			rl.logger.ErrorContext(r.Context(), "Blocking request due to unknown client IP for rate limiting")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if !rl.allow(r.Context(), ip) {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded", "ip", ip)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", math.Ceil(rl.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"message": "Rate limit exceeded",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
