// Package http exposes the ledger over a JSON HTTP API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/ledger"
)

// ReadinessChecker verifies a backing dependency, typically the database.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	store       *ledger.Store
	readiness   ReadinessChecker
	rateLimiter *rateLimiter
	recentLimit int
	trendMonths int

	// Rendered chart PNGs, purged on every ledger mutation.
	chartCache   *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
	started      time.Time
}

// NewServer wires routes against the store and returns a ready-to-run server.
// readiness may be nil when there is no backing database to check.
func NewServer(addr string, store *ledger.Store, readiness ReadinessChecker, recentLimit, trendMonths int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:        store,
		readiness:    readiness,
		rateLimiter:  newRateLimiter(),
		recentLimit:  recentLimit,
		trendMonths:  trendMonths,
		chartCache:   cache.NewLRUCache[[]byte](50, 5*time.Minute),
		cacheManager: cache.NewManager(),
		started:      time.Now(),
	}

	s.cacheManager.Register(s.chartCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	store.Subscribe(ledger.ObserverFunc(func(ctx context.Context, ev ledger.ChangeEvent) error {
		s.chartCache.Purge()
		return nil
	}))

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/accounts", s.withAPIHeaders(s.handleAccounts))
	mux.HandleFunc("/api/transactions", s.withAPIHeaders(s.handleTransactions))
	mux.HandleFunc("/api/transactions/recent", s.withAPIHeaders(s.handleRecentTransactions))
	mux.HandleFunc("/api/transfers", s.withAPIHeaders(s.handleTransfers))
	mux.HandleFunc("/api/debts", s.withAPIHeaders(s.handleDebts))
	mux.HandleFunc("/api/debts/{id}/repayments", s.withAPIHeaders(s.handleRepayments))
	mux.HandleFunc("/api/budgets", s.withAPIHeaders(s.handleBudgets))
	mux.HandleFunc("/api/categories", s.withAPIHeaders(s.handleCategories))
	mux.HandleFunc("/api/subcategories", s.withAPIHeaders(s.handleSubcategories))
	mux.HandleFunc("/api/settings", s.withAPIHeaders(s.handleSettings))

	mux.HandleFunc("/api/reports/balance", s.withAPIHeaders(s.handleBalanceReport))
	mux.HandleFunc("/api/reports/period", s.withAPIHeaders(s.handlePeriodReport))
	mux.HandleFunc("/api/reports/categories", s.withAPIHeaders(s.handleCategoryReport))
	mux.HandleFunc("/api/reports/budget", s.withAPIHeaders(s.handleBudgetReport))
	mux.HandleFunc("/api/reports/trend", s.withAPIHeaders(s.handleTrendReport))
	mux.HandleFunc("/api/reports/debts", s.withAPIHeaders(s.handleDebtReport))

	mux.HandleFunc("/api/charts/trend.png", s.withAPIHeaders(s.handleTrendChart))
	mux.HandleFunc("/api/charts/categories.png", s.withAPIHeaders(s.handleCategoryChart))

	mux.HandleFunc("/api/export", s.withAPIHeaders(s.handleExport))
	mux.HandleFunc("/api/import", s.withAPIHeaders(s.handleImport))
	mux.HandleFunc("/api/clear", s.withAPIHeaders(s.handleClear))

	return s
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withAPIHeaders adds security headers, rate limiting, and request logging.
func (s *Server) withAPIHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := clientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
