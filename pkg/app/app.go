// Package app ties the store, the router and the reconciler together.
//
// State changes are patched into the mounted tree in place; navigation
// remounts a freshly rendered view. All work happens on one logical UI
// thread: callers outside the event flow (HTTP handlers, websocket readers,
// file watchers) go through Dispatch.
package app

import (
	"context"
	"sync"

	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/internal/logging"
	"github.com/conneroisu/mist/pkg/reactive"
	"github.com/conneroisu/mist/pkg/router"
	"github.com/conneroisu/mist/pkg/vdom"
)

// RenderKind says how the mounted tree last changed.
type RenderKind string

const (
	RenderMount   RenderKind = "mount"
	RenderPatch   RenderKind = "patch"
	RenderRemount RenderKind = "remount"
)

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(a *App) { a.logger = l.WithComponent("app") }
}

// WithReconcilerOptions passes options to the reconciler.
func WithReconcilerOptions(opts ...vdom.Option) Option {
	return func(a *App) { a.reconcilerOpts = append(a.reconcilerOpts, opts...) }
}

// WithErrorCollector records render failures in c.
func WithErrorCollector(c *errors.ErrorCollector) Option {
	return func(a *App) { a.errs = c }
}

// App is a mounted application.
type App struct {
	mu sync.Mutex

	doc    vdom.Document
	store  *reactive.Store
	router *router.Router
	rec    *vdom.Reconciler
	logger logging.Logger
	errs   *errors.ErrorCollector
	errh   *errors.ErrorHandler

	reconcilerOpts []vdom.Option

	selector string
	route    router.Route
	current  *vdom.Node
	effect   *reactive.Effect
	scope    *reactive.Scope
	removers []func()
	hooks    []func(RenderKind)
	failures int
	started  bool
	// dirty is set when a patch or remount failed partway. The host tree
	// no longer matches current, so the next view is mounted fresh.
	dirty bool
}

// New creates an application over doc. The router's titles are written to
// doc.
func New(doc vdom.Document, store *reactive.Store, r *router.Router, opts ...Option) *App {
	a := &App{
		doc:    doc,
		store:  store,
		router: r,
		logger: logging.Nop(),
		errs:   errors.NewErrorCollector(50),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.rec = vdom.NewReconciler(doc, a.reconcilerOpts...)
	a.errh = errors.NewErrorHandler(a.logger, a.errs)
	r.SetTitler(doc)
	return a
}

// OnRender registers fn to run after every mount, patch and remount. Hooks
// run on the UI thread; register them before Start and never from a hook.
func (a *App) OnRender(fn func(RenderKind)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, fn)
}

// Start resolves the current location, mounts its view into the element
// matched by selector and starts tracking the store.
func (a *App) Start(selector string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return errors.NewInternalError(errors.ErrCodeInternalError, "application already started", nil)
	}

	route, err := a.router.ResolveCurrent()
	if err != nil {
		return err
	}
	a.route = route
	a.selector = selector

	view, err := a.build(nil)
	if err != nil {
		return err
	}
	if _, err := a.rec.Mount(selector, view); err != nil {
		return err
	}
	a.current = view
	a.started = true
	a.logger.Info(context.Background(), "Mounted application",
		"selector", selector, "route", route.Name, "path", route.Path)
	a.emit(RenderMount)

	a.removers = append(a.removers,
		a.router.History().OnPop(func(string) { a.router.Emit() }),
		a.router.OnNavigate(a.remount),
	)
	a.effect = a.store.Track(a.patch)
	return nil
}

// patch is the tracked effect: rebuild the view from the store and update
// the mounted tree in place.
func (a *App) patch(scope *reactive.Scope) error {
	a.scope = scope
	next, err := a.build(scope)
	if err != nil {
		a.fail(err, "Building view failed")
		return nil
	}

	a.rec.ResetStats()
	if a.dirty {
		if _, err := a.rec.Mount(a.selector, next); err != nil {
			a.fail(err, "Remounting view failed")
			return nil
		}
		a.current = next
		a.dirty = false
		a.logger.Debug(context.Background(), "Resynchronised view", "route", a.route.Name)
		a.emit(RenderRemount)
		return nil
	}
	if err := a.rec.Update(a.current, next); err != nil {
		// The host tree keeps whatever was applied.
		a.dirty = true
		a.fail(err, "Patching view failed")
		return nil
	}
	a.current = next

	stats := a.rec.Stats()
	a.logger.Debug(context.Background(), "Patched view",
		"route", a.route.Name,
		"replaced", stats.Replaced,
		"attr_sets", stats.AttrSets,
		"attr_removes", stats.AttrRemoves,
		"appended", stats.Appended,
		"removed", stats.Removed)
	a.emit(RenderPatch)
	return nil
}

// remount handles the navigation signal. The new view is built under the
// patch effect's scope so the new route's reads are tracked.
func (a *App) remount() {
	route, err := a.router.ResolveCurrent()
	if err != nil {
		a.fail(err, "Resolving route failed")
		return
	}
	a.route = route

	next, err := a.build(a.scope)
	if err != nil {
		a.fail(err, "Building view failed")
		return
	}
	if _, err := a.rec.Mount(a.selector, next); err != nil {
		a.dirty = true
		a.fail(err, "Remounting view failed")
		return
	}
	a.current = next
	a.dirty = false
	a.logger.Info(context.Background(), "Navigated", "route", route.Name, "path", a.router.History().Location())
	a.emit(RenderRemount)
}

// build runs the route's view. Construction panics raised by vdom.H are
// returned as errors.
func (a *App) build(scope *reactive.Scope) (n *vdom.Node, err error) {
	if a.route.View == nil {
		return nil, errors.InvalidNodeDescriptor(a.route.Name, "route has no view")
	}
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, errors.FromPanic(r)
		}
	}()
	n = a.route.View(&router.Context{
		Store:  a.store,
		Scope:  scope,
		Router: a.router,
		Route:  a.route,
	})
	if n == nil {
		return nil, errors.InvalidNodeDescriptor(a.route.Name, "view returned no node")
	}
	return n, nil
}

func (a *App) fail(err error, msg string) {
	a.failures++
	a.logger.Debug(context.Background(), msg, "route", a.route.Name)
	a.errh.Handle(context.Background(), err)
}

func (a *App) emit(kind RenderKind) {
	for _, fn := range a.hooks {
		fn(kind)
	}
}

// Dispatch runs fn on the UI thread. It returns fn's error or, failing
// that, the latest render failure fn caused.
func (a *App) Dispatch(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := a.failures
	if err := fn(); err != nil {
		return err
	}
	if a.failures > before {
		return a.errs.Last()
	}
	return nil
}

// Navigate navigates to path on the UI thread.
func (a *App) Navigate(path string) error {
	return a.Dispatch(func() error {
		return a.router.Navigate(router.ByPath(path))
	})
}

// Back moves back in history on the UI thread.
func (a *App) Back() bool {
	var moved bool
	_ = a.Dispatch(func() error {
		moved = a.router.History().Back()
		return nil
	})
	return moved
}

// Current returns the mounted tree. Call it from the UI thread.
func (a *App) Current() *vdom.Node { return a.current }

// Route returns the mounted route. Call it from the UI thread.
func (a *App) Route() router.Route { return a.route }

// Store returns the application store.
func (a *App) Store() *reactive.Store { return a.store }

// Router returns the application router.
func (a *App) Router() *router.Router { return a.router }

// Reconciler returns the reconciler bound to the document.
func (a *App) Reconciler() *vdom.Reconciler { return a.rec }

// Errors returns the recorded render failures.
func (a *App) Errors() *errors.ErrorCollector { return a.errs }

// LastError returns the most recent render failure, or nil.
func (a *App) LastError() error { return a.errs.Last() }

// Stop stops tracking and removes the navigation listeners. The mounted
// tree is left in place.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.effect != nil {
		a.effect.Stop()
		a.effect = nil
	}
	for _, remove := range a.removers {
		remove()
	}
	a.removers = nil
	a.started = false
}
