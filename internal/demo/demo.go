// Package demo is the application served by "mist serve" and rendered by
// "mist render": a counter, a keyed todo list, an about page and a not
// found page.
package demo

import (
	"fmt"
	"strings"

	"github.com/conneroisu/mist/pkg/reactive"
	"github.com/conneroisu/mist/pkg/router"
	"github.com/conneroisu/mist/pkg/vdom"
)

// InitialState returns the default store contents.
func InitialState() map[string]any {
	return map[string]any{
		"count": 0,
		"draft": "",
		"todos": []any{
			map[string]any{"id": 1, "text": "Read the reconciler", "done": true},
			map[string]any{"id": 2, "text": "Write a view", "done": false},
		},
		"about": map[string]any{
			"motto":   "Patch in place, remount on navigation.",
			"version": "dev",
		},
	}
}

// Routes returns the demo routes.
func Routes() []router.Route {
	return []router.Route{
		{Path: "/", Name: "counter", Title: "Counter", View: Counter},
		{Path: "/todos", Name: "todos", Title: "Todos", View: Todos},
		{Path: "/about", Name: "about", Title: "About", View: About},
		{Name: router.NotFoundName, Title: "Not found", View: NotFound},
	}
}

func nav(ctx *router.Context) *vdom.Node {
	links := make([]any, 0, 3)
	for _, r := range ctx.Router.Routes() {
		if r.Name == router.NotFoundName {
			continue
		}
		path := r.Path
		class := ""
		if r.Name == ctx.Route.Name {
			class = "active"
		}
		links = append(links, vdom.H("a", vdom.Props{
			{Name: "href", Value: path},
			{Name: "class", Value: class},
			{Name: "onClick", Value: func() { _ = ctx.Navigate(path) }},
		}, r.Title))
	}
	return vdom.H("nav", nil, links...)
}

// Counter shows a number with buttons to change it.
func Counter(ctx *router.Context) *vdom.Node {
	count := ctx.Int("count")
	step := func(delta int) func() {
		return func() {
			ctx.Set("count", reactive.Int(ctx.Store.Get(nil, "count"))+delta)
		}
	}
	return vdom.H("main", vdom.Props{{Name: "class", Value: "counter"}},
		nav(ctx),
		vdom.H("h1", nil, "Counter"),
		vdom.H("p", nil,
			vdom.H("span", vdom.Props{{Name: "id", Value: "count"}}, count),
		),
		vdom.H("button", vdom.Props{{Name: "id", Value: "dec"}, {Name: "onClick", Value: step(-1)}}, "-"),
		vdom.H("button", vdom.Props{{Name: "id", Value: "inc"}, {Name: "onClick", Value: step(1)}}, "+"),
		vdom.If(count < 0, vdom.H("p", vdom.Props{{Name: "class", Value: "warning"}}, "Below zero")),
	)
}

// Todo is one entry of the todo list.
type Todo struct {
	ID   int
	Text string
	Done bool
}

// TodosFrom converts the stored list, skipping malformed entries.
func TodosFrom(v any) []Todo {
	items, _ := v.([]any)
	todos := make([]Todo, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text, _ := m["text"].(string)
		done, _ := m["done"].(bool)
		todos = append(todos, Todo{ID: reactive.Int(m["id"]), Text: text, Done: done})
	}
	return todos
}

func storeTodos(todos []Todo) []any {
	out := make([]any, len(todos))
	for i, t := range todos {
		out[i] = map[string]any{"id": t.ID, "text": t.Text, "done": t.Done}
	}
	return out
}

// Todos is a keyed list. Items keep their host elements across toggles and
// removals.
func Todos(ctx *router.Context) *vdom.Node {
	todos := TodosFrom(ctx.Get("todos"))
	draft := ctx.String("draft")

	current := func() []Todo { return TodosFrom(ctx.Store.Get(nil, "todos")) }
	update := func(id int, fn func([]Todo, int) []Todo) func() {
		return func() {
			list := current()
			for i := range list {
				if list[i].ID == id {
					ctx.Set("todos", storeTodos(fn(list, i)))
					return
				}
			}
		}
	}
	toggle := func(list []Todo, i int) []Todo {
		list[i].Done = !list[i].Done
		return list
	}
	remove := func(list []Todo, i int) []Todo {
		return append(list[:i], list[i+1:]...)
	}
	add := func() {
		text, _ := ctx.Store.Get(nil, "draft").(string)
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		list := current()
		next := 1
		for _, t := range list {
			if t.ID >= next {
				next = t.ID + 1
			}
		}
		ctx.Set("todos", storeTodos(append(list, Todo{ID: next, Text: text})))
		ctx.Set("draft", "")
	}

	open := 0
	for _, t := range todos {
		if !t.Done {
			open++
		}
	}

	return vdom.H("main", vdom.Props{{Name: "class", Value: "todos"}},
		nav(ctx),
		vdom.H("h1", nil, vdom.Textf("Todos (%d open)", open)),
		vdom.H("input", vdom.Props{
			{Name: "id", Value: "draft"},
			{Name: "value", Value: draft},
			{Name: "placeholder", Value: "What next?"},
			{Name: "onInput", Value: func(e vdom.Event) { ctx.Set("draft", e.Data["value"]) }},
		}),
		vdom.H("button", vdom.Props{{Name: "id", Value: "add"}, {Name: "onClick", Value: add}}, "Add"),
		vdom.H("ul", nil, vdom.For(todos, func(t Todo, _ int) *vdom.Node {
			class := "open"
			if t.Done {
				class = "done"
			}
			return vdom.H("li", vdom.Props{{Name: "id", Value: t.ID}, {Name: "class", Value: class}},
				vdom.H("span", nil, t.Text),
				vdom.H("button", vdom.Props{{Name: "class", Value: "toggle"}, {Name: "onClick", Value: update(t.ID, toggle)}}, "toggle"),
				vdom.H("button", vdom.Props{{Name: "class", Value: "remove"}, {Name: "onClick", Value: update(t.ID, remove)}}, "remove"),
			)
		})),
	)
}

// About renders store-driven text and the route table.
func About(ctx *router.Context) *vdom.Node {
	rows := make([]*vdom.Node, 0)
	for _, r := range ctx.Router.Routes() {
		rows = append(rows, vdom.H("tr", nil,
			vdom.H("td", nil, r.Path),
			vdom.H("td", nil, r.Name),
		))
	}
	return vdom.H("main", vdom.Props{{Name: "class", Value: "about"}},
		nav(ctx),
		vdom.H("h1", nil, "About"),
		vdom.H("p", nil, fmt.Sprint(ctx.GetPath("about.motto"))),
		vdom.H("p", nil, vdom.Textf("Version %v", ctx.GetPath("about.version"))),
		vdom.H("table", nil, vdom.H("tbody", nil, rows)),
	)
}

// NotFound is rendered for unknown locations.
func NotFound(ctx *router.Context) *vdom.Node {
	return vdom.H("main", vdom.Props{{Name: "class", Value: "not-found"}},
		nav(ctx),
		vdom.H("h1", nil, "Not found"),
		vdom.H("p", nil, vdom.Textf("Nothing lives at %s", ctx.Router.History().Location())),
	)
}
