// Package httpserver owns the HTTP server lifecycle of the preview server:
// route registration, middleware and graceful shutdown.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/internal/logging"
)

// ShutdownTimeout bounds graceful shutdown after the start context ends.
const ShutdownTimeout = 10 * time.Second

// Handlers provides every HTTP handler the router registers.
type Handlers interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	HandleHealth(w http.ResponseWriter, r *http.Request)
	HandleState(w http.ResponseWriter, r *http.Request)
	HandleErrors(w http.ResponseWriter, r *http.Request)
	HandleClient(w http.ResponseWriter, r *http.Request)
	HandlePage(w http.ResponseWriter, r *http.Request)
}

// MiddlewareProvider wraps the route multiplexer.
type MiddlewareProvider interface {
	Apply(handler http.Handler) http.Handler
}

// Router handles HTTP server lifecycle and route registration.
type Router struct {
	addr     string
	mux      *http.ServeMux
	handler  http.Handler
	handlers Handlers
	logger   logging.Logger

	serverMutex sync.RWMutex
	httpServer  *http.Server
	listener    net.Listener
	isShutdown  bool
}

// NewRouter registers the routes of handlers and applies middleware. A nil
// middleware provider serves the bare multiplexer.
func NewRouter(addr string, handlers Handlers, middleware MiddlewareProvider, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.Nop()
	}
	r := &Router{
		addr:     addr,
		mux:      http.NewServeMux(),
		handlers: handlers,
		logger:   logger.WithComponent("httpserver"),
	}
	r.registerRoutes()

	r.handler = r.mux
	if middleware != nil {
		r.handler = middleware.Apply(r.mux)
	}
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return r
}

func (r *Router) registerRoutes() {
	r.mux.HandleFunc("GET /ws", r.handlers.HandleWebSocket)
	r.mux.HandleFunc("GET /health", r.handlers.HandleHealth)
	r.mux.HandleFunc("GET /api/state", r.handlers.HandleState)
	r.mux.HandleFunc("GET /api/errors", r.handlers.HandleErrors)
	r.mux.HandleFunc("GET /_mist/client.js", r.handlers.HandleClient)
	// Every other path is an application route.
	r.mux.HandleFunc("GET /", r.handlers.HandlePage)
}

// Handler returns the wrapped multiplexer.
func (r *Router) Handler() http.Handler { return r.handler }

// Listen binds the configured address. Start listens itself when Listen was
// not called.
func (r *Router) Listen() error {
	r.serverMutex.Lock()
	defer r.serverMutex.Unlock()

	if r.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeInternalError, "listening", err).
			WithContext("addr", r.addr)
	}
	r.listener = ln
	return nil
}

// Start serves until ctx is done or the server fails. A cancelled context
// shuts the server down gracefully and returns nil.
func (r *Router) Start(ctx context.Context) error {
	if err := r.Listen(); err != nil {
		return err
	}

	r.serverMutex.RLock()
	server, ln, isShutdown := r.httpServer, r.listener, r.isShutdown
	r.serverMutex.RUnlock()

	if isShutdown {
		return errors.NewInternalError(errors.ErrCodeInternalError, "router has been shut down", nil)
	}

	r.logger.Info(ctx, "Serving", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- errors.NewIOError(errors.ErrCodeInternalError, "server error", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return r.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server. It is idempotent.
func (r *Router) Shutdown(ctx context.Context) error {
	r.serverMutex.Lock()
	defer r.serverMutex.Unlock()

	if r.isShutdown {
		return nil
	}
	r.isShutdown = true

	if err := r.httpServer.Shutdown(ctx); err != nil {
		return errors.NewIOError(errors.ErrCodeInternalError, "server shutdown failed", err)
	}
	if r.listener != nil {
		// Serve closes its listener; one bound by Listen alone is closed here.
		_ = r.listener.Close()
	}
	r.logger.Info(ctx, "Server stopped")
	return nil
}

// GetAddr returns the bound address, or the configured one before Listen.
func (r *Router) GetAddr() string {
	r.serverMutex.RLock()
	defer r.serverMutex.RUnlock()

	if r.listener != nil {
		return r.listener.Addr().String()
	}
	return r.addr
}

// IsShutdown returns whether the router has been shut down
func (r *Router) IsShutdown() bool {
	r.serverMutex.RLock()
	defer r.serverMutex.RUnlock()
	return r.isShutdown
}
