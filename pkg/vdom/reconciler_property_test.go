//go:build property
// +build property

package vdom_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/mist/internal/host/htmldoc"
	"github.com/conneroisu/mist/pkg/vdom"
)

func listView(tag string, ids []int, tone int) *vdom.Node {
	items := vdom.For(ids, func(id, i int) *vdom.Node {
		return vdom.H("li", vdom.Props{
			{Name: "id", Value: id},
			{Name: "class", Value: fmt.Sprintf("tone-%d", (id+tone)%3)},
		}, fmt.Sprintf("item %d", id))
	})
	return vdom.H("section", nil, vdom.H("h1", nil, fmt.Sprintf("%d items", len(ids))), vdom.H(tag, nil, items))
}

func freshHTML(n *vdom.Node) string {
	doc := htmldoc.New()
	target, err := vdom.NewReconciler(doc).Mount("#app", n)
	if err != nil {
		return err.Error()
	}
	return doc.InnerHTML(target)
}

// TestReconcilerProperties checks that patching always converges on what a
// fresh render of the new tree produces, for keyed and positional lists.
func TestReconcilerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	ids := gen.SliceOf(gen.IntRange(0, 6))

	for _, tag := range []string{"ul", "ol"} {
		tag := tag
		properties.Property("update converges on fresh render for "+tag, prop.ForAll(
			func(before, after []int, tone int) bool {
				doc := htmldoc.New()
				r := vdom.NewReconciler(doc)
				old := listView(tag, before, 0)
				target, err := r.Mount("#app", old)
				if err != nil {
					return false
				}
				next := listView(tag, after, tone)
				if err := r.Update(old, next); err != nil {
					return false
				}
				return doc.InnerHTML(target) == freshHTML(listView(tag, after, tone))
			},
			ids, ids, gen.IntRange(0, 2),
		))
	}

	properties.Property("identical update issues no operations", prop.ForAll(
		func(items []int) bool {
			r := vdom.NewReconciler(htmldoc.New())
			old := listView("ul", items, 1)
			if _, err := r.Mount("#app", old); err != nil {
				return false
			}
			r.ResetStats()
			if err := r.Update(old, listView("ul", items, 1)); err != nil {
				return false
			}
			return r.Stats() == vdom.Stats{}
		},
		ids,
	))

	properties.Property("root element survives any list update", prop.ForAll(
		func(before, after []int) bool {
			r := vdom.NewReconciler(htmldoc.New())
			old := listView("ul", before, 0)
			if _, err := r.Mount("#app", old); err != nil {
				return false
			}
			root := old.Host()
			next := listView("ul", after, 0)
			if err := r.Update(old, next); err != nil {
				return false
			}
			return next.Host() == root
		},
		ids, ids,
	))

	properties.TestingRun(t)
}
