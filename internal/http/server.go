// Package http exposes the envelope ledger as a JSON API under /api/budget.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
	applog "envelopes/internal/log"
	"envelopes/internal/metrics"
	"envelopes/internal/middleware/ratelimit"
	"envelopes/internal/middleware/security"
	"envelopes/internal/middleware/trace"
)

const (
	readTimeout    = 10 * time.Second
	writeTimeout   = 10 * time.Second
	idleTimeout    = 60 * time.Second
	maxHeaderBytes = 64 << 10
)

// BudgetService is the application layer the handlers drive.
//
// Mutations return the ledger balance as of that mutation; responses report
// it instead of reading the ledger again.
type BudgetService interface {
	InitializeBudget(ctx context.Context, total core.Money) (ledger.Balance, error)
	CreateEnvelope(ctx context.Context, name string, amount core.Money) (core.Envelope, ledger.Balance, error)
	ModifyEnvelope(ctx context.Context, id core.EnvelopeID, name string, budget core.Money) (core.Envelope, ledger.Balance, error)
	Transfer(ctx context.Context, fromID, toID core.EnvelopeID, amount core.Money) (core.Envelope, core.Envelope, ledger.Balance, error)
	DeleteEnvelope(ctx context.Context, id core.EnvelopeID) (core.Envelope, ledger.Balance, error)
	Envelopes(ctx context.Context) []core.Envelope
	Envelope(ctx context.Context, id core.EnvelopeID) (core.Envelope, error)
	Status(ctx context.Context) ledger.Snapshot
}

type Server struct {
	http.Server
	budget  BudgetService
	logger  *applog.Logger
	metrics *metrics.Metrics
	limiter *ratelimit.Limiter

	started      time.Time
	ready        atomic.Bool
	shutdownOnce sync.Once
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Logger  *applog.Logger
	Metrics *metrics.Metrics
	// Limiter throttles mutating requests per client; nil disables it.
	Limiter *ratelimit.Limiter
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, budget BudgetService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:           addr,
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			IdleTimeout:    idleTimeout,
			MaxHeaderBytes: maxHeaderBytes,
		},
		budget:  budget,
		logger:  logger,
		metrics: opts.Metrics,
		limiter: opts.Limiter,
		started: time.Now(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/budget/init", s.limited(s.handleInit))
	mux.HandleFunc("POST /api/budget/envelopes", s.limited(s.handleCreateEnvelope))
	mux.HandleFunc("PUT /api/budget/envelopes/{id}", s.limited(s.handleModifyEnvelope))
	mux.HandleFunc("DELETE /api/budget/envelopes/{id}", s.limited(s.handleDeleteEnvelope))
	mux.HandleFunc("POST /api/budget/transfer", s.limited(s.handleTransfer))

	mux.HandleFunc("GET /api/budget/status", s.handleStatus)
	mux.HandleFunc("GET /api/budget/envelopes", s.handleListEnvelopes)
	mux.HandleFunc("GET /api/budget/envelopes/{id}", s.handleGetEnvelope)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", opts.Metrics.Handler())

	routeOf := func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}

	var handler http.Handler = mux
	handler = s.recoverer(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, opts.Metrics, security.ClientIP, routeOf).Middleware(handler)
	s.Handler = handler

	s.ready.Store(true)
	return s
}

// limited applies the rate limiter to a mutating handler.
func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(security.ClientIP, s.handleRateLimited)(h).ServeHTTP
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncRateLimited()
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, security.ClientIP(r))
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// recoverer turns a panicking handler into a 500 with the generic message.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				applog.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panic",
					applog.FieldError, rec,
					applog.FieldPath, r.URL.Path)
				writeInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Shutdown marks the server not ready, stops background work and drains
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.ready.Store(false)

		if s.limiter != nil {
			s.limiter.Stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
