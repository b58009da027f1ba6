package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/thejerf/abtime"
)

// Config holds rate limiting configuration for the delegation endpoints.
// Every register request opens a backend session, so limits are per client
// IP.
type Config struct {
	Enabled bool

	// Capacity is the burst allowed per client IP
	Capacity int

	// PerMinute is the sustained rate per client IP
	PerMinute float64

	// BucketTTL is how long an idle client is remembered
	BucketTTL time.Duration

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Capacity:  10,
		PerMinute: 30,
		BucketTTL: 1 * time.Hour,
	}
}

// Middleware limits requests per client IP
type Middleware struct {
	config  Config
	limiter *RateLimiter
}

// Option is a function that configures a Middleware
type Option func(*middlewareOptions)

type middlewareOptions struct {
	clock abtime.AbstractTime
}

// WithClock sets the clock used to refill buckets
func WithClock(clock abtime.AbstractTime) Option {
	return func(o *middlewareOptions) {
		o.clock = clock
	}
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(config Config, opts ...Option) *Middleware {
	o := middlewareOptions{clock: abtime.NewRealTime()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Middleware{
		config:  config,
		limiter: NewRateLimiter(config.Capacity, config.PerMinute/60.0, config.BucketTTL, o.clock),
	}
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if !m.config.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.clientIP(r)
		if ok, wait := m.limiter.Allow(ip); !ok {
			m.rateLimitExceeded(w, r, ip, wait)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.config.Capacity))
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, ip string, wait time.Duration) {
	slog.Warn("Rate limit exceeded", "ip", ip, "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, map[string]string{"error": "Too many requests. Please try again later."})
}

// clientIP extracts the client IP address from the request
func (m *Middleware) clientIP(r *http.Request) string {
	if m.config.TrustProxyHeaders {
		// X-Forwarded-For can contain multiple IPs, take the first one
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
