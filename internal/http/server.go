// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"haybase/internal/auth"
	"haybase/internal/ledger"
	"haybase/internal/log"
	"haybase/internal/metrics"
	"haybase/internal/middleware/ratelimit"
	"haybase/internal/middleware/security"
)

// Server wires the ledger service and session store into an HTTP API.
type Server struct {
	service  *ledger.Service
	sessions *auth.Sessions
	logger   *log.Logger
	slogger  *log.StructuredLogger
	limiter  *ratelimit.Limiter
	headers  *security.HeadersMiddleware
	ready    func(context.Context) error
	srv      *http.Server
}

// NewServer builds a server listening on port. ready is called by the
// readiness probe; pass nil for backends with nothing to check.
func NewServer(port string, service *ledger.Service, sessions *auth.Sessions, logger *log.Logger, ready func(context.Context) error) *Server {
	s := &Server{
		service:  service,
		sessions: sessions,
		logger:   logger,
		slogger:  log.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		headers:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		ready:    ready,
	}
	s.srv = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler assembles the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(log.Middleware(s.logger))
	r.Use(s.headers.Middleware)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.MutatingOnly(clientIP))

		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", s.handleListAccounts)
				r.Post("/", s.handleCreateAccount)
				r.Put("/{id}", s.handleUpdateAccount)
				r.Delete("/{id}", s.handleDeleteAccount)
			})
			r.Route("/account-types", func(r chi.Router) {
				r.Get("/", s.handleListAccountTypes)
				r.Post("/", s.handleCreateAccountType)
				r.Put("/{id}", s.handleUpdateAccountType)
				r.Delete("/{id}", s.handleDeleteAccountType)
			})
			r.Route("/account-groups", func(r chi.Router) {
				r.Get("/", s.handleListAccountGroups)
				r.Post("/", s.handleCreateAccountGroup)
				r.Put("/{id}", s.handleUpdateAccountGroup)
				r.Delete("/{id}", s.handleDeleteAccountGroup)
			})
			r.Route("/months", func(r chi.Router) {
				r.Get("/", s.handleListMonths)
				r.Post("/", s.handleCreateMonth)
			})
			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", s.handleListTransactions)
				r.Post("/", s.handleCreateTransaction)
				r.Put("/{id}", s.handleUpdateTransaction)
				r.Delete("/{id}", s.handleDeleteTransaction)
			})
			r.Route("/transfers", func(r chi.Router) {
				r.Get("/", s.handleListTransfers)
				r.Post("/", s.handleCreateTransfer)
				r.Put("/{id}", s.handleUpdateTransfer)
				r.Delete("/{id}", s.handleDeleteTransfer)
			})
			r.Route("/reserves", func(r chi.Router) {
				r.Get("/", s.handleListReserves)
				r.Get("/categories", s.handleListReserveCategories)
				r.Post("/", s.handleCreateReserve)
				r.Put("/{id}", s.handleUpdateReserve)
				r.Delete("/{id}", s.handleDeleteReserve)
			})
			r.Route("/plan", func(r chi.Router) {
				r.Get("/", s.handlePlanComparison)
				r.Get("/snapshots", s.handleListPlans)
				r.Post("/", s.handleCreatePlanSnapshot)
			})
			r.Get("/wealth", s.handleWealthSeries)
			r.Get("/dashboard", s.handleDashboard)
		})
	})

	return r
}

// Start blocks serving requests until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusWriter captures the response code for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// instrument records request metrics and a completion log line. The
// metric route label is the chi pattern, not the raw path, so ids do
// not explode cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.slogger.LogHTTPEnd(r.Context(), r, sw.status, elapsed.Milliseconds(), clientIP(r), middleware.GetReqID(r.Context()))
	})
}

// clientIP trusts RealIP to have rewritten RemoteAddr already.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
