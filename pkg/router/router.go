// Package router maps locations to views and drives navigation through a
// History. Views receive an explicit Context carrying the store, the
// tracking scope and the router instead of reaching for globals.
package router

import (
	"fmt"

	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/pkg/reactive"
	"github.com/conneroisu/mist/pkg/vdom"
)

// NotFoundName is the name of the fallback route.
const NotFoundName = "404"

// Sentinels for errors.Is checks.
var (
	ErrNoRouteDefined         = errors.ErrNoRouteDefined
	ErrUnsupportedLocatorKind = errors.ErrUnsupportedLocatorKind
	ErrNoRoutes               = errors.ErrNoRoutes
)

// View builds the tree for a route from the current state.
type View func(*Context) *vdom.Node

// Route is one entry of the route table.
type Route struct {
	Path  string
	Name  string
	Title string
	View  View
}

// LocatorKind selects how a Locator is matched.
type LocatorKind string

const (
	KindPath LocatorKind = "path"
	KindName LocatorKind = "name"
)

// Locator identifies a route by path or by name.
type Locator struct {
	Kind  LocatorKind
	Value string
}

// ByPath locates a route by its path.
func ByPath(path string) Locator { return Locator{Kind: KindPath, Value: path} }

// ByName locates a route by its name.
func ByName(name string) Locator { return Locator{Kind: KindName, Value: name} }

func (l Locator) String() string { return fmt.Sprintf("%s=%s", l.Kind, l.Value) }

// Titler receives the title of every resolved route. vdom.Document
// implementations satisfy it.
type Titler interface {
	SetTitle(title string)
}

// Router resolves locators and pushes navigation onto its History.
type Router struct {
	routes    []Route
	history   History
	titler    Titler
	listeners map[int]func()
	nextID    int
}

// New builds a router. At least one route is required; a route named "404"
// is used as the fallback for unmatched locators. titler may be nil.
func New(routes []Route, history History, titler Titler) (*Router, error) {
	if len(routes) == 0 {
		return nil, errors.NewRoutingError(errors.ErrCodeNoRoutes, "router needs at least one route")
	}
	if history == nil {
		history = NewMemoryHistory("", "/")
	}
	return &Router{
		routes:    append([]Route(nil), routes...),
		history:   history,
		titler:    titler,
		listeners: make(map[int]func()),
	}, nil
}

// Routes returns a copy of the route table.
func (r *Router) Routes() []Route { return append([]Route(nil), r.routes...) }

// History returns the navigation history.
func (r *Router) History() History { return r.history }

// SetTitler replaces the title sink.
func (r *Router) SetTitler(t Titler) { r.titler = t }

func (r *Router) lookup(loc Locator) (Route, bool) {
	for _, route := range r.routes {
		if (loc.Kind == KindPath && route.Path == loc.Value) || (loc.Kind == KindName && route.Name == loc.Value) {
			return route, true
		}
	}
	return Route{}, false
}

// Resolve finds the route for loc, falling back to the "404" route. It sets
// the document title to the route's title, or to the current address when
// the route has none.
func (r *Router) Resolve(loc Locator) (Route, error) {
	if loc.Kind != KindPath && loc.Kind != KindName {
		return Route{}, errors.UnsupportedLocatorKind(string(loc.Kind))
	}
	route, ok := r.lookup(loc)
	if !ok {
		route, ok = r.lookup(ByName(NotFoundName))
		if !ok {
			return Route{}, errors.NoRouteDefined(string(loc.Kind), loc.Value)
		}
	}

	if r.titler != nil {
		title := route.Title
		if title == "" {
			title = r.history.Address()
		}
		r.titler.SetTitle(title)
	}
	return route, nil
}

// ResolveCurrent resolves the history's current location.
func (r *Router) ResolveCurrent() (Route, error) {
	return r.Resolve(ByPath(r.history.Location()))
}

// Navigate resolves loc and, unless its path is already the current
// location, pushes the path and emits the navigation signal. A route
// without a path can only be reached through the fallback of a path
// locator.
func (r *Router) Navigate(loc Locator) error {
	route, err := r.Resolve(loc)
	if err != nil {
		return err
	}
	target := route.Path
	if target == "" {
		if loc.Kind != KindPath {
			return errors.NewRoutingError(errors.ErrCodeNoRouteDefined,
				fmt.Sprintf("route %q has no path to navigate to", route.Name)).
				WithContext("kind", string(loc.Kind)).
				WithContext("value", loc.Value)
		}
		// Fallback routes without a path keep the requested address.
		target = loc.Value
	}
	if target == r.history.Location() {
		return nil
	}
	r.history.Push(target)
	r.Emit()
	return nil
}

// OnNavigate registers fn for the navigation signal and returns a function
// that removes it.
func (r *Router) OnNavigate(fn func()) (remove func()) {
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() { delete(r.listeners, id) }
}

// Emit sends the navigation signal to every listener in registration order.
func (r *Router) Emit() {
	for id := 0; id < r.nextID; id++ {
		if fn, ok := r.listeners[id]; ok {
			fn()
		}
	}
}

// Context is handed to every view. Reads through Get subscribe the running
// effect; Set writes to the store.
type Context struct {
	Store  *reactive.Store
	Scope  *reactive.Scope
	Router *Router
	Route  Route
}

// Get reads a top-level key under the view's scope.
func (c *Context) Get(key string) any { return c.Store.Get(c.Scope, key) }

// GetPath reads a dotted path under the view's scope.
func (c *Context) GetPath(path string) any { return c.Store.GetPath(c.Scope, path) }

// String reads a key as a string, or "" when it holds something else.
func (c *Context) String(key string) string {
	s, _ := c.Get(key).(string)
	return s
}

// Int reads a key as an int, converting any numeric kind.
func (c *Context) Int(key string) int { return reactive.Int(c.Get(key)) }

// Set writes a top-level key.
func (c *Context) Set(key string, v any) { c.Store.Set(key, v) }

// Navigate navigates by path.
func (c *Context) Navigate(path string) error {
	return c.Router.Navigate(ByPath(path))
}
