// Package http serves the ledger, analytics and prediction JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"smartfin/internal/forecast"
	"smartfin/internal/log"
	"smartfin/internal/services"
)

type Options struct {
	Ledger   *services.LedgerService
	Forecast *forecast.Service
	Logger   *log.Logger
	// RequestsPerMinute limits writes per client IP (default 60).
	RequestsPerMinute int
	Clock             func() time.Time
}

type Server struct {
	http.Server
	ledger   *services.LedgerService
	forecast *forecast.Service
	logger   *log.Logger
	access   *log.StructuredLogger
	limiter  *rateLimiter
	detector *detector
	now      func() time.Time

	startedAt    time.Time
	requests     int64
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	fc := opts.Forecast
	if fc == nil {
		fc = forecast.NewService(nil)
	}

	s := &Server{
		ledger:    opts.Ledger,
		forecast:  fc,
		logger:    logger,
		access:    log.NewStructuredLogger(logger),
		limiter:   newRateLimiter(opts.RequestsPerMinute),
		detector:  &detector{},
		now:       now,
		startedAt: now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/profile", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profile", s.handleUpdateProfile)

	mux.HandleFunc("GET /api/invoices", s.handleListInvoices)
	mux.HandleFunc("POST /api/invoices", s.handleCreateInvoice)
	mux.HandleFunc("GET /api/invoices/summary", s.handleInvoiceSummary)
	mux.HandleFunc("PUT /api/invoices/{id}", s.handleUpdateInvoice)
	mux.HandleFunc("DELETE /api/invoices/{id}", s.handleDeleteInvoice)
	mux.HandleFunc("PATCH /api/invoices/{id}/status", s.handleSetInvoiceStatus)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/analytics/monthly", s.handleMonthly)
	mux.HandleFunc("GET /api/analytics/categories", s.handleCategories)
	mux.HandleFunc("GET /api/budget/recommendations", s.handleBudget)
	mux.HandleFunc("GET /api/watch", s.handleWatch)
	mux.HandleFunc("GET /api/predictions", s.handlePredictions)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/export.xlsx", s.handleExportXLSX)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("DELETE /api/data", s.handleDeleteData)

	s.Server = http.Server{
		Addr:    addr,
		Handler: s.withMiddleware(mux),
	}
	return s
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withMiddleware adds request ids, security headers, probe detection,
// rate limiting of writes and access logging.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&s.requests, 1)

		clientIP := extractClientIP(r)
		requestID := generateRequestID()
		ctx := log.NewContext(r.Context(), s.logger.With(log.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		rw.Header().Set("X-Request-ID", requestID)
		setSecurityHeaders(rw, r)
		defer func() {
			if p := recover(); p != nil {
				s.logger.ErrorContext(ctx, "Handler panic", log.FieldRequestID, requestID, log.FieldError, fmt.Sprint(p))
				if !rw.wroteHeader {
					InternalServerError("internal server error").Write(rw)
				}
			}
			s.access.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start), clientIP)
		}()

		if s.detector.inspect(r) {
			s.logger.WithComponent(log.ComponentSecurity).WarnContext(ctx, "Suspicious request",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.limiter.allow(clientIP, time.Now()) {
			s.logger.WithComponent(log.ComponentRateLimit).WarnContext(ctx, "Rate limit exceeded", log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").
				Header("Retry-After", "60").
				Write(rw)
			return
		}

		next.ServeHTTP(rw, r)
	})
}

// responseWriter captures the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}
