// Package server is the live preview server. It runs one application
// against an in-memory host document, records every mutation the
// reconciler makes and streams the recorded operations to connected
// browsers, which send their DOM events back over the same socket.
package server

import (
	"context"
	_ "embed"
	"net/http"
	"path/filepath"

	"github.com/conneroisu/mist/internal/config"
	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/internal/host/htmldoc"
	"github.com/conneroisu/mist/internal/host/patch"
	"github.com/conneroisu/mist/internal/httpserver"
	"github.com/conneroisu/mist/internal/logging"
	"github.com/conneroisu/mist/internal/middleware"
	"github.com/conneroisu/mist/internal/security"
	"github.com/conneroisu/mist/internal/statefile"
	"github.com/conneroisu/mist/internal/validation"
	"github.com/conneroisu/mist/internal/watcher"
	"github.com/conneroisu/mist/internal/websocket"
	"github.com/conneroisu/mist/pkg/app"
	"github.com/conneroisu/mist/pkg/reactive"
	"github.com/conneroisu/mist/pkg/router"
	"github.com/conneroisu/mist/pkg/vdom"
)

//go:embed client.js
var clientJS []byte

// Server serves one application to any number of browsers.
type Server struct {
	cfg    *config.Config
	logger logging.Logger

	doc     *htmldoc.Document
	rec     *patch.Recorder
	store   *reactive.Store
	app     *app.App
	history *router.MemoryHistory

	ws      *websocket.Manager
	http    *httpserver.Router
	watcher *watcher.FileWatcher

	body    vdom.Handle
	target  vdom.Handle
	mounted bool
}

// New wires the application for routes and store to a recorded in-memory
// document. Nothing is mounted until Mount or Run.
func New(cfg *config.Config, routes []router.Route, store *reactive.Store, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger.WithComponent("server"),
		doc:     htmldoc.New(),
		store:   store,
		history: router.NewMemoryHistory(cfg.App.BaseURL, "/"),
	}
	s.rec = patch.NewRecorder(s.doc)

	r, err := router.New(routes, s.history, nil)
	if err != nil {
		return nil, err
	}
	s.app = app.New(s.rec, store, r,
		app.WithLogger(logger),
		app.WithReconcilerOptions(
			vdom.WithKeyedTags(cfg.App.KeyedTags...),
			vdom.WithKeyProp(cfg.App.KeyProp),
		),
	)
	s.app.OnRender(s.broadcast)

	origins := middleware.NewOriginValidator(cfg.Server.AllowedOrigins)
	s.ws = websocket.NewManager(origins,
		websocket.WithLogger(logger),
		websocket.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		websocket.WithConnectFunc(s.connect),
		websocket.WithMessageFunc(s.message),
	)
	chain := middleware.NewChain(logger, origins)
	chain.Add(security.Middleware(security.DefaultSecurityConfig()))
	s.http = httpserver.NewRouter(cfg.Addr(), s, chain, logger)
	return s, nil
}

// App returns the served application.
func (s *Server) App() *app.App { return s.app }

// Document returns the in-memory host document.
func (s *Server) Document() *htmldoc.Document { return s.doc }

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.http.Handler() }

// Mount starts the application at the configured target.
func (s *Server) Mount() error {
	if s.mounted {
		return nil
	}
	if err := s.app.Start(s.cfg.App.Target); err != nil {
		return err
	}
	s.body, _ = s.doc.Query("body")
	s.target, _ = s.doc.Query(s.cfg.App.Target)
	s.mounted = true
	return nil
}

// Run mounts the application, starts the state watcher when enabled and
// serves HTTP until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Mount(); err != nil {
		return err
	}
	if err := s.startWatcher(ctx); err != nil {
		return err
	}
	defer s.close(context.Background())

	return s.http.Start(ctx)
}

// Listen binds the server address ahead of Run.
func (s *Server) Listen() error { return s.http.Listen() }

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string { return s.http.GetAddr() }

func (s *Server) close(ctx context.Context) {
	_ = s.ws.Shutdown(ctx)
	if s.watcher != nil {
		_ = s.watcher.Stop()
	}
	s.app.Stop()
}

func (s *Server) startWatcher(ctx context.Context) error {
	path := s.cfg.App.StateFile
	if !s.cfg.Watch.Enabled || path == "" {
		return nil
	}
	w, err := watcher.NewFileWatcher(s.cfg.Watch.Debounce, s.logger)
	if err != nil {
		return err
	}
	if err := w.WatchFile(path); err != nil {
		_ = w.Stop()
		return err
	}
	w.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, e := range events {
			if e.Type == watcher.EventTypeDeleted {
				return nil
			}
		}
		return s.ReloadState()
	})
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	s.watcher = w
	s.logger.Info(ctx, "Watching state file", "path", filepath.Clean(path))
	return nil
}

// ReloadState applies the configured state file to the store. Changed keys
// patch the mounted view.
func (s *Server) ReloadState() error {
	path := s.cfg.App.StateFile
	if path == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "no state file configured")
	}
	op := logging.StartOperation(s.logger, "reload_state")
	err := s.app.Dispatch(func() error {
		return statefile.Apply(s.store, path)
	})
	if err != nil {
		op.EndWithError(context.Background(), err)
		s.ws.Broadcast(websocket.Message{Type: websocket.MessageError, Error: err.Error(), Errors: s.app.Errors().ErrorOverlay()})
		return err
	}
	op.End(context.Background())
	s.logger.Info(context.Background(), "Reloaded state", "path", path)
	return nil
}

// broadcast runs on the UI thread after every render and streams the
// operations it recorded.
func (s *Server) broadcast(kind app.RenderKind) {
	ops := s.rec.Flush()
	if len(ops) == 0 {
		return
	}
	s.ws.Broadcast(websocket.Message{
		Type: websocket.MessagePatch,
		Kind: string(kind),
		Ops:  ops,
		Path: s.history.Location(),
	})
}

// connect registers a new browser and queues the current tree for it. Both
// happen on the UI thread so no patch falls between the snapshot and the
// first broadcast the client sees.
func (s *Server) connect(c *websocket.Client) error {
	return s.app.Dispatch(func() error {
		s.ws.Register(c)
		return c.Send(s.reset())
	})
}

func (s *Server) reset() websocket.Message {
	return websocket.Message{
		Type:   websocket.MessageReset,
		Tree:   s.rec.Snapshot(s.target),
		Title:  s.doc.Title(),
		Path:   s.history.Location(),
		Errors: s.app.Errors().ErrorOverlay(),
	}
}

// message handles events and navigation sent by a browser.
func (s *Server) message(c *websocket.Client, msg websocket.Message) {
	var err error
	switch msg.Type {
	case websocket.MessageEvent:
		err = s.app.Dispatch(func() error {
			h, ok := s.rec.Lookup(msg.ID)
			if !ok {
				return errors.NewRenderError(errors.ErrCodeInternalError, "event target is gone").
					WithContext("id", msg.ID)
			}
			s.doc.Dispatch(h, msg.Event, validation.SanitizeData(msg.Data))
			return nil
		})
	case websocket.MessageNavigate:
		if err = validation.ValidateLocation(msg.Path); err != nil {
			err = errors.NewRoutingError(errors.ErrCodeNoRouteDefined, err.Error()).
				WithContext("path", msg.Path)
			break
		}
		err = s.app.Navigate(msg.Path)
	default:
		err = errors.NewInternalError(errors.ErrCodeInternalError, "unknown message type "+string(msg.Type), nil)
	}
	if err != nil {
		s.logger.Debug(context.Background(), "Client message failed",
			"type", string(msg.Type), "remote", c.Remote(), "error", err.Error())
		_ = c.Send(websocket.Message{Type: websocket.MessageError, Error: err.Error(), Errors: s.app.Errors().ErrorOverlay()})
	}
}
