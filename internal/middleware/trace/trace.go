// Package trace assigns request ids, attaches a request-scoped logger and
// records per-route request metrics.
package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	applog "envelopes/internal/log"
	"envelopes/internal/metrics"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLength = 64
)

// Middleware handles request tracing and logging. Handlers get logger with
// the request id attached; access lines are tagged with the trace component.
type Middleware struct {
	logger    *applog.Logger
	access    *applog.Logger
	metrics   *metrics.Metrics
	extractIP func(*http.Request) string
	routeOf   func(*http.Request) string
}

// NewMiddleware creates a trace middleware. extractIP and routeOf may be nil;
// routeOf should return the matched route pattern so metric labels stay
// bounded.
func NewMiddleware(logger *applog.Logger, m *metrics.Metrics, extractIP, routeOf func(*http.Request) string) *Middleware {
	return &Middleware{
		logger:    logger,
		access:    logger.WithComponent(applog.ComponentTrace),
		metrics:   m,
		extractIP: extractIP,
		routeOf:   routeOf,
	}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		route := ""
		if m.routeOf != nil {
			route = m.routeOf(r)
		}

		requestID := requestIDFrom(r)
		w.Header().Set(RequestIDHeader, requestID)

		idCtx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx := applog.NewContext(idCtx, m.logger.With(applog.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		access := applog.NewStructuredLogger(m.access.With(applog.FieldRequestID, requestID))
		access.LogHTTPStart(idCtx, r, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		access.LogHTTPEnd(idCtx, r, rw.statusCode, duration.Milliseconds(), clientIP)
		m.metrics.ObserveHTTPRequest(r.Method, route, rw.statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// requestIDFrom reuses a well-formed incoming id and generates one otherwise.
func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); validRequestID(id) {
		return id
	}
	return GenerateRequestID()
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
