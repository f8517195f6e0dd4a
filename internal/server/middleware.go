package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.ObserveHTTP(route, rec.status, time.Since(start))
		s.logger.Debug("request", "method", r.Method, "route", route, "status", rec.status, "duration", time.Since(start))
	})
}

// requireAuth rejects requests without valid credentials with 403.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Check(r); err != nil {
			writeError(w, http.StatusForbidden, "Invalid API Key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit admits at most the configured number of calls per window for
// the route. A limiter error lets the request through.
func (s *Server) rateLimit(key string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter != nil {
				ok, err := s.limiter.Allow(r.Context(), key)
				if err != nil {
					s.logger.Warn("rate limiter unavailable, allowing request", "error", err)
				} else if !ok {
					s.metrics.ObserveRateLimited()
					writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
