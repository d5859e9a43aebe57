// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/audiopolicyd/internal/logging"
	"github.com/tomtom215/audiopolicyd/internal/metrics"
)

// corsMiddleware builds a go-chi/cors handler restricted to origins,
// matching the teacher's DefaultChiMiddlewareConfig's CORS shape.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// rateLimit builds a go-chi/httprate limiter keyed by client IP, used on
// the policy-reload endpoint per SPEC_FULL.md's domain-stack table.
func rateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requestsPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
}

// authenticate validates the request's bearer token and attaches the
// resulting Subject to the request context, rejecting the request with
// 401 if the token is missing or invalid.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := s.tokens.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		ctx := contextWithSubject(r.Context(), Subject{Name: claims.Subject, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize enforces that the authenticated Subject's role may perform
// act on obj, via the Casbin Enforcer (teacher's authz.Middleware.
// Authorize, narrowed to a fixed object/action per route rather than a
// path-derived one since this API is nine routes, not a wide REST surface).
func (s *Server) authorize(obj, act string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				http.Error(w, "forbidden: no authentication context", http.StatusForbidden)
				return
			}
			allowed, err := s.enforcer.Enforce(subject.Role, obj, act)
			if err != nil {
				logging.WithComponent("httpapi").Error().Err(err).Msg("authorization error")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, "forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records every request's duration and status against
// internal/metrics, adapted from the teacher's PrometheusMetrics
// middleware (HTTP-handler shape kept, metrics.HTTPRequestDuration
// histogram swapped in for the teacher's API-request counters).
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Observe(time.Since(start).Seconds())
	})
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// requestLogging attaches chi's request ID to the zerolog context, the
// way the teacher's RequestIDWithLogging does.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := chimiddleware.GetReqID(r.Context())
		log := logging.WithComponent("httpapi").With().Str("request_id", reqID).Logger()
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}
