package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"finboard/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the id assigned by the request middleware.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// withMiddleware wraps next with request tracing, security headers,
// suspicious request detection and the POST rate limit.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		logger := s.logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = log.NewContext(ctx, logger)
		r = r.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		s.headers.apply(w, r)

		if detectSuspiciousRequest(r, s.metrics) {
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		if r.Method == http.MethodPost && !s.limiter.allow(clientIP, s.metrics) {
			s.logger.WithComponent(log.ComponentRateLimit).WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			http.Error(rw, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		} else {
			next.ServeHTTP(rw, r)
		}

		s.requestLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP, requestID)
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

// SecurityStats reports the counters kept by the middleware.
func (s *Server) SecurityStats() (rateLimitHits, suspicious int64) {
	return atomic.LoadInt64(&s.metrics.rateLimitHits), atomic.LoadInt64(&s.metrics.suspiciousRequests)
}
