// Package docs is the entry point of the mist documentation.
//
// Mist is a reactive single-page application runtime. An application is a
// reactive store, a route table and a host document; views are functions
// from a route context to a virtual node tree, and the runtime keeps the
// host document in step with the store and the current route.
//
// # Packages
//
//   - vdom: virtual nodes, the Document capability interface and the reconciler
//   - reactive: the store, signals, nested objects, effects and scopes
//   - router: routes, locators, history and the view context
//   - app: the driver that mounts, patches on state change and remounts on navigation
//
// # Quick Start
//
//	store := reactive.Wrap(map[string]any{"count": 0})
//	r, _ := router.New([]router.Route{
//		{Path: "/", Name: "home", Title: "Home", View: func(ctx *router.Context) *vdom.Node {
//			return vdom.H("button", vdom.Props{
//				{Name: "onClick", Value: func() { ctx.Set("count", ctx.Int("count")+1) }},
//			}, ctx.Int("count"))
//		}},
//	}, nil, nil)
//	a := app.New(doc, store, r)
//	_ = a.Start("#app")
//
// Setting a key re-runs only the effects that read it; the mounted tree is
// patched in place. Navigating resolves the new route and remounts.
//
// # Rendering Model
//
// Text changes replace the text node. Attributes are added, updated and
// removed individually; event handlers are bound once per element and
// must read current state through the store rather than capture it.
// Children are reconciled by position, or by key for keyed tags (ul by
// default, keyed on the id property).
//
// # Command Line
//
//	mist serve                 # live server for the demo application
//	mist render /todos         # print the HTML of a route
//	mist routes -o yaml        # list the route table
//	mist config show           # print the effective configuration
//
// For more information, see the individual package documentation.
package docs
