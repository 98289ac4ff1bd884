package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"cpidash/internal/cache"
	applog "cpidash/internal/log"
	"cpidash/internal/services"
)

// Server exposes the inflation dashboard API. Responses for GET
// endpoints are cached until the dataset refreshes.
type Server struct {
	http.Server
	dataset     *services.DatasetService
	rateLimiter *rateLimiter
	secMetrics  *securityMetrics
	structLog   *applog.StructuredLogger

	responseCache *cache.LRUCache[cachedResponse]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caching, returning a ready-to-run http.Server.
func NewServer(addr string, dataset *services.DatasetService) *Server {
	mux := http.NewServeMux()

	logger := applog.New(applog.Config{Component: applog.ComponentHTTP})

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(logger)(mux),
		},
		dataset:       dataset,
		rateLimiter:   newRateLimiter(),
		secMetrics:    &securityMetrics{},
		structLog:     applog.NewStructuredLogger(logger),
		responseCache: cache.NewLRUCache[cachedResponse](256, 5*time.Minute),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.responseCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// A new dataset makes every cached response stale.
	dataset.OnRefresh(s.responseCache.Clear)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	api := func(h http.HandlerFunc) http.HandlerFunc {
		return s.withSecurityHeaders(s.cached(h))
	}

	mux.HandleFunc("/api/overview", api(s.handleOverview))
	mux.HandleFunc("/api/recent-trends", api(s.handleRecentTrends))
	mux.HandleFunc("/api/historical", api(s.handleHistorical))
	mux.HandleFunc("/api/breakdown", api(s.handleBreakdown))
	mux.HandleFunc("/api/trends", api(s.handleTrends))
	mux.HandleFunc("/api/compare-periods", api(s.handleComparePeriods))
	mux.HandleFunc("/api/percentile", api(s.handlePercentile))
	mux.HandleFunc("/api/monthly-summary", api(s.handleMonthlySummary))
	mux.HandleFunc("/api/summary", api(s.handleSummaryStats))
	mux.HandleFunc("/api/cumulative", api(s.handleCumulative))
	mux.HandleFunc("/api/trend-direction", api(s.handleTrendDirection))
	mux.HandleFunc("/api/volatility", api(s.handleVolatility))
	mux.HandleFunc("/api/base-effects", api(s.handleBaseEffects))
	mux.HandleFunc("/api/projection", api(s.handleProjection))
	mux.HandleFunc("/api/export/csv", s.withSecurityHeaders(s.handleExportCSV))
	mux.HandleFunc("/api/export/table", api(s.handleExportTable))
	mux.HandleFunc("/api/refresh", s.withSecurityHeaders(s.handleRefresh))
	mux.HandleFunc("/api/cache", s.withSecurityHeaders(s.handleCache))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.structLog.LogHTTPStart(ctx, r, clientIP)

		if detectSuspiciousRequest(r, s.secMetrics) {
			slog.WarnContext(ctx, "Suspicious request blocked",
				"client_ip", clientIP, "url", r.URL.String())
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		if !s.rateLimiter.allow(clientIP, s.secMetrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// cached serves GET responses from the in-memory cache, storing
// successful JSON bodies keyed by the full request URI.
func (s *Server) cached(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next(w, r)
			return
		}

		key := r.URL.RequestURI()
		if resp, found := s.responseCache.Get(key); found {
			w.Header().Set("Content-Type", resp.contentType)
			if resp.disposition != "" {
				w.Header().Set("Content-Disposition", resp.disposition)
			}
			w.Header().Set("X-Cache", "hit")
			_, _ = w.Write(resp.body)
			return
		}

		rec := &recordingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rec, r)

		if rec.statusCode == http.StatusOK && rec.buf.Len() > 0 {
			contentType := rec.Header().Get("Content-Type")
			if contentType == "" {
				contentType = "application/json"
			}
			s.responseCache.Set(key, cachedResponse{
				body:        rec.buf.Bytes(),
				contentType: contentType,
				disposition: rec.Header().Get("Content-Disposition"),
			})
		}
	}
}

// cachedResponse replays a cached body with the headers that shape
// how clients treat it.
type cachedResponse struct {
	body        []byte
	contentType string
	disposition string
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// recordingWriter additionally buffers the body for the response cache.
type recordingWriter struct {
	http.ResponseWriter
	statusCode int
	buf        bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(p []byte) (int, error) {
	if rw.statusCode == http.StatusOK {
		rw.buf.Write(p)
	}
	return rw.ResponseWriter.Write(p)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the persistent cache is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.dataset.CacheInfo(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
