// Package audit provides middleware for auditing delegation requests
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tendant/simple-valtuudet/pkg/hetu"
)

// Config holds the configuration for the audit middleware
type Config struct {
	// Logger receives one record per request; slog.Default() when nil
	Logger *slog.Logger
	// Source names the service in audit records
	Source string
}

// Middleware handles HTTP request auditing
type Middleware struct {
	config Config
}

// NewMiddleware creates a new audit middleware instance
func NewMiddleware(config Config) *Middleware {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Source == "" {
		config.Source = "valtuudet"
	}
	return &Middleware{config: config}
}

// AuditEvent represents one audited request
type AuditEvent struct {
	RequestID string
	URI       string
	Method    string
	Status    int
	Duration  time.Duration
	Timestamp time.Time
}

// Handler records every request after it completes. Delegate identifiers in
// the path are masked and the query string is dropped; it carries the
// authorization code.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := AuditEvent{
			RequestID: uuid.NewString(),
			URI:       MaskPath(r.URL.Path),
			Method:    r.Method,
			Timestamp: time.Now(),
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event.Status = ww.Status()
		if event.Status == 0 {
			event.Status = http.StatusOK
		}
		event.Duration = time.Since(event.Timestamp)
		m.record(event)
	})
}

func (m *Middleware) record(event AuditEvent) {
	level := slog.LevelInfo
	if event.Status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	m.config.Logger.Log(context.Background(), level, "Delegation request",
		"source", m.config.Source,
		"request_id", event.RequestID,
		"method", event.Method,
		"uri", event.URI,
		"status", event.Status,
		"duration", event.Duration,
	)
}

// MaskPath masks the delegate identifier in /register/{mode}/{hetu}.
func MaskPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) == 4 && parts[0] == "" && parts[1] == "register" {
		parts[3] = hetu.Mask(parts[3])
		return strings.Join(parts, "/")
	}
	return path
}
