package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/mist/internal/host/htmldoc"
	"github.com/conneroisu/mist/pkg/app"
	"github.com/conneroisu/mist/pkg/reactive"
	"github.com/conneroisu/mist/pkg/router"
	"github.com/conneroisu/mist/pkg/vdom"
)

func counterView(ctx *router.Context) *vdom.Node {
	count := ctx.Int("count")
	return vdom.H("div", vdom.Props{{Name: "class", Value: "counter"}},
		vdom.H("span", nil, count),
		vdom.H("button", vdom.Props{{Name: "onClick", Value: func() { ctx.Set("count", count+1) }}}, "+"),
	)
}

func aboutView(ctx *router.Context) *vdom.Node {
	return vdom.H("p", nil, ctx.String("motto"))
}

type fixture struct {
	doc     *htmldoc.Document
	store   *reactive.Store
	history *router.MemoryHistory
	app     *app.App
	renders []app.RenderKind
}

func newFixture(t *testing.T, routes []router.Route, initial string) *fixture {
	t.Helper()
	f := &fixture{
		doc:     htmldoc.New(),
		store:   reactive.Wrap(map[string]any{"count": 0, "motto": "small is fine"}),
		history: router.NewMemoryHistory("http://localhost", initial),
	}
	r, err := router.New(routes, f.history, nil)
	require.NoError(t, err)
	f.app = app.New(f.doc, f.store, r)
	f.app.OnRender(func(k app.RenderKind) { f.renders = append(f.renders, k) })
	return f
}

func defaultRoutes() []router.Route {
	return []router.Route{
		{Path: "/", Name: "home", Title: "Counter", View: counterView},
		{Path: "/about", Name: "about", Title: "About", View: aboutView},
		{Path: "/404", Name: router.NotFoundName, Title: "Not found", View: func(*router.Context) *vdom.Node {
			return vdom.H("h1", nil, "404")
		}},
	}
}

func (f *fixture) target() vdom.Handle {
	h, _ := f.doc.Query("#app")
	return h
}

func TestStart(t *testing.T) {
	f := newFixture(t, defaultRoutes(), "/")
	require.NoError(t, f.app.Start("#app"))

	assert.Equal(t, `<div class="counter"><span>0</span><button>+</button></div>`, f.doc.InnerHTML(f.target()))
	assert.Equal(t, "Counter", f.doc.Title())
	assert.Equal(t, "home", f.app.Route().Name)
	// The tracked effect's first run patches nothing.
	assert.Equal(t, []app.RenderKind{app.RenderMount, app.RenderPatch}, f.renders)

	assert.Error(t, f.app.Start("#app"))
}

func TestStartErrors(t *testing.T) {
	t.Run("missing target", func(t *testing.T) {
		f := newFixture(t, defaultRoutes(), "/")
		err := f.app.Start("#root")
		assert.ErrorIs(t, err, vdom.ErrMountTargetNotFound)
	})

	t.Run("no route", func(t *testing.T) {
		f := newFixture(t, defaultRoutes()[:1], "/elsewhere")
		err := f.app.Start("#app")
		assert.ErrorIs(t, err, router.ErrNoRouteDefined)
	})

	t.Run("broken view", func(t *testing.T) {
		f := newFixture(t, []router.Route{{Path: "/", Name: "home", View: func(*router.Context) *vdom.Node {
			return vdom.H("div", nil, struct{}{})
		}}}, "/")
		err := f.app.Start("#app")
		assert.ErrorIs(t, err, vdom.ErrInvalidNodeDescriptor)
	})
}

func TestStateChangePatchesInPlace(t *testing.T) {
	f := newFixture(t, defaultRoutes(), "/")
	require.NoError(t, f.app.Start("#app"))
	root := f.app.Current().Host()
	button := f.app.Current().Children()[1].Host()

	require.NoError(t, f.app.Dispatch(func() error {
		f.doc.Dispatch(button, "click", nil)
		return nil
	}))

	assert.Equal(t, 1, f.store.Get(nil, "count"))
	assert.Equal(t, root, f.app.Current().Host())
	assert.Equal(t, `<div class="counter"><span>1</span><button>+</button></div>`, f.doc.InnerHTML(f.target()))

	// The listener bound at first render still fires and still closes over
	// the value it was rendered with.
	require.NoError(t, f.app.Dispatch(func() error {
		f.doc.Dispatch(button, "click", nil)
		return nil
	}))
	assert.Equal(t, 1, f.store.Get(nil, "count"))
}

func TestNavigationRemounts(t *testing.T) {
	f := newFixture(t, defaultRoutes(), "/")
	require.NoError(t, f.app.Start("#app"))
	oldRoot := f.app.Current().Host()
	f.renders = nil

	require.NoError(t, f.app.Navigate("/about"))
	assert.Equal(t, []app.RenderKind{app.RenderRemount}, f.renders)
	assert.NotEqual(t, oldRoot, f.app.Current().Host())
	assert.Equal(t, `<p>small is fine</p>`, f.doc.InnerHTML(f.target()))
	assert.Equal(t, "About", f.doc.Title())

	// Reads made by the new route are tracked.
	require.NoError(t, f.app.Dispatch(func() error {
		f.store.Set("motto", "less is more")
		return nil
	}))
	assert.Equal(t, `<p>less is more</p>`, f.doc.InnerHTML(f.target()))

	f.renders = nil
	require.NoError(t, f.app.Navigate("/about"))
	assert.Empty(t, f.renders, "navigating to the current path is a no-op")

	assert.True(t, f.app.Back())
	assert.Equal(t, []app.RenderKind{app.RenderRemount}, f.renders)
	assert.Equal(t, "home", f.app.Route().Name)
	assert.Contains(t, f.doc.InnerHTML(f.target()), `<span>0</span>`)

	require.NoError(t, f.app.Navigate("/missing"))
	assert.Equal(t, `<h1>404</h1>`, f.doc.InnerHTML(f.target()))
}

func TestRenderFailureIsReported(t *testing.T) {
	routes := []router.Route{{Path: "/", Name: "home", View: func(ctx *router.Context) *vdom.Node {
		if ctx.Int("count") > 0 {
			return vdom.H("div", nil, map[string]int{})
		}
		return vdom.H("div", nil, "ok")
	}}}
	f := newFixture(t, routes, "/")
	require.NoError(t, f.app.Start("#app"))

	err := f.app.Dispatch(func() error {
		f.store.Set("count", 1)
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, vdom.ErrInvalidNodeDescriptor)
	assert.ErrorIs(t, f.app.LastError(), vdom.ErrInvalidNodeDescriptor)
	assert.Equal(t, `<div>ok</div>`, f.doc.InnerHTML(f.target()))
	assert.Contains(t, f.app.Errors().ErrorOverlay(), "ERR_INVALID_NODE_DESCRIPTOR")

	require.NoError(t, f.app.Dispatch(func() error {
		f.store.Set("count", 0)
		return nil
	}))
}

func TestFailedPatchResynchronises(t *testing.T) {
	routes := []router.Route{{Path: "/", Name: "home", View: func(ctx *router.Context) *vdom.Node {
		n := ctx.Int("count")
		var onClick any = func() {}
		if n == 1 {
			onClick = "not a handler"
		}
		return vdom.H("div", nil,
			vdom.H("span", nil, n),
			vdom.H("p", vdom.Props{{Name: "onClick", Value: onClick}}, "x"),
			vdom.H("em", nil, n),
		)
	}}}
	f := newFixture(t, routes, "/")
	require.NoError(t, f.app.Start("#app"))
	set := func(n int) error {
		return f.app.Dispatch(func() error {
			f.store.Set("count", n)
			return nil
		})
	}

	err := set(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, vdom.ErrInvalidEventBinding)

	f.renders = nil
	require.NoError(t, set(2))
	assert.Equal(t, `<div><span>2</span><p>x</p><em>2</em></div>`, f.doc.InnerHTML(f.target()))
	assert.Equal(t, []app.RenderKind{app.RenderRemount}, f.renders)

	require.NoError(t, set(3))
	assert.Equal(t, `<div><span>3</span><p>x</p><em>3</em></div>`, f.doc.InnerHTML(f.target()))
	assert.Equal(t, []app.RenderKind{app.RenderRemount, app.RenderPatch}, f.renders)

	p, ok := f.doc.Query("p")
	require.True(t, ok)
	assert.Equal(t, 1, f.doc.ListenerCount(p, "click"))
}

func TestStop(t *testing.T) {
	f := newFixture(t, defaultRoutes(), "/")
	require.NoError(t, f.app.Start("#app"))
	f.app.Stop()
	f.renders = nil

	require.NoError(t, f.app.Dispatch(func() error {
		f.store.Set("count", 5)
		return nil
	}))
	assert.Empty(t, f.renders)
	assert.Contains(t, f.doc.InnerHTML(f.target()), `<span>0</span>`)

	require.NoError(t, f.app.Navigate("/about"))
	assert.Empty(t, f.renders)
}

func TestKeyedReconcilerOption(t *testing.T) {
	doc := htmldoc.New()
	store := reactive.Wrap(map[string]any{"items": []any{1, 2, 3}})
	r, err := router.New([]router.Route{{Path: "/", Name: "list", View: func(ctx *router.Context) *vdom.Node {
		items, _ := ctx.Get("items").([]any)
		return vdom.H("ol", nil, vdom.For(items, func(item any, _ int) *vdom.Node {
			return vdom.H("li", vdom.Props{{Name: "id", Value: item.(int)}}, item.(int))
		}))
	}}}, nil, nil)
	require.NoError(t, err)

	a := app.New(doc, store, r, app.WithReconcilerOptions(vdom.WithKeyedTags("ol")))
	require.NoError(t, a.Start("#app"))
	third := a.Current().Children()[2].Host()

	require.NoError(t, a.Dispatch(func() error {
		store.Set("items", []any{1, 3})
		return nil
	}))
	assert.Equal(t, third, a.Current().Children()[1].Host())
}
