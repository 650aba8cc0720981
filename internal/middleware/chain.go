// Package middleware composes the HTTP middleware stack of the preview
// server.
package middleware

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/internal/logging"
)

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// Chain manages the middleware stack. Middlewares run in the order they
// were added: the first added is the outermost wrapper.
type Chain struct {
	logger      logging.Logger
	origins     *OriginValidator
	middlewares []Middleware
}

// NewChain builds the default stack: recovery, request logging and CORS.
func NewChain(logger logging.Logger, origins *OriginValidator) *Chain {
	if logger == nil {
		logger = logging.Nop()
	}
	if origins == nil {
		origins = NewOriginValidator(nil)
	}
	c := &Chain{
		logger:  logger.WithComponent("http"),
		origins: origins,
	}
	c.Add(c.recovery())
	c.Add(c.logging())
	c.Add(c.cors())
	return c
}

// Add appends a middleware inside the existing ones.
func (c *Chain) Add(m Middleware) {
	c.middlewares = append(c.middlewares, m)
}

// Len returns the number of middlewares.
func (c *Chain) Len() int { return len(c.middlewares) }

// Apply wraps handler with every middleware.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
	}
	return wrapped
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack passes websocket upgrades through to the underlying connection.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.NewInternalError(errors.ErrCodeInternalError, "response writer cannot hijack", nil)
	}
	return hj.Hijack()
}

func (c *Chain) logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			c.logger.Debug(r.Context(), "Handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start))
		})
	}
}

func (c *Chain) recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					c.logger.Error(context.Background(), errors.FromPanic(rv), "Handler panicked",
						"path", r.URL.Path)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func (c *Chain) cors() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && c.origins.Allowed(origin, r.Host) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OriginValidator decides which browser origins may talk to the server.
// An origin is allowed when it is listed or when its host matches the
// request host.
type OriginValidator struct {
	allowed map[string]bool
}

// NewOriginValidator allows the listed origins.
func NewOriginValidator(origins []string) *OriginValidator {
	v := &OriginValidator{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		v.allowed[strings.TrimSuffix(strings.ToLower(o), "/")] = true
	}
	return v
}

// Allowed reports whether origin may connect to a server reached as host.
func (v *OriginValidator) Allowed(origin, host string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if v.allowed[strings.TrimSuffix(strings.ToLower(origin), "/")] {
		return true
	}
	return strings.EqualFold(u.Host, host)
}

// Patterns returns the explicit origins as host patterns for websocket
// accept options.
func (v *OriginValidator) Patterns() []string {
	patterns := make([]string, 0, len(v.allowed))
	for o := range v.allowed {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
