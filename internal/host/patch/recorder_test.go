package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/mist/internal/host/htmldoc"
	"github.com/conneroisu/mist/pkg/vdom"
)

func kinds(ops []Op) []OpKind {
	out := make([]OpKind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind
	}
	return out
}

func TestRecorderForwardsAndRecords(t *testing.T) {
	doc := htmldoc.New()
	r := NewRecorder(doc)
	assert.Same(t, doc, r.Inner())

	app, ok := r.Query("#app")
	require.True(t, ok)
	li := r.CreateElement("li")
	r.SetAttribute(li, "class", "done")
	r.AddEventListener(li, "click", func(vdom.Event) {})
	txt := r.CreateText("milk")
	r.AppendChild(li, txt)
	r.AppendChild(app, li)
	r.SetTitle("Todos")

	assert.Equal(t, `<li class="done">milk</li>`, doc.InnerHTML(app))
	assert.Equal(t, "Todos", doc.Title())
	assert.Equal(t, 1, doc.ListenerCount(li, "click"))

	assert.Equal(t, 8, r.Pending())
	ops := r.Flush()
	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, []OpKind{
		OpBind, OpCreateElement, OpSetAttr, OpListen, OpCreateText, OpAppend, OpAppend, OpTitle,
	}, kinds(ops))

	appID, liID, txtID := r.ID(app), r.ID(li), r.ID(txt)
	assert.Equal(t, Op{Kind: OpBind, ID: appID, Value: "#app"}, ops[0])
	assert.Equal(t, Op{Kind: OpCreateElement, ID: liID, Tag: "li"}, ops[1])
	assert.Equal(t, Op{Kind: OpSetAttr, ID: liID, Name: "class", Value: "done"}, ops[2])
	assert.Equal(t, Op{Kind: OpCreateText, ID: txtID, Value: "milk"}, ops[4])
	assert.Equal(t, Op{Kind: OpAppend, ID: liID, Parent: appID}, ops[6])

	h, ok := r.Lookup(liID)
	require.True(t, ok)
	assert.Equal(t, li, h)
	assert.Equal(t, 0, r.ID(nil))

	// A second query of a bound target records nothing.
	_, ok = r.Query("#app")
	require.True(t, ok)
	assert.Equal(t, 0, r.Pending())

	_, ok = r.Query("#missing")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Pending())
}

func TestSnapshot(t *testing.T) {
	r := NewRecorder(htmldoc.New())
	app, _ := r.Query("#app")
	ul := r.CreateElement("ul")
	r.SetAttribute(ul, "id", "list")
	r.SetAttribute(ul, "id", "items")
	r.SetAttribute(ul, "hidden", "")
	r.RemoveAttribute(ul, "hidden")
	r.AddEventListener(ul, "click", func(vdom.Event) {})
	r.AppendChild(ul, r.CreateText("x"))
	r.AppendChild(app, ul)

	tree := r.Snapshot(app)
	require.NotNil(t, tree)
	assert.Equal(t, "#app", tree.Selector)
	require.Len(t, tree.Children, 1)

	list := tree.Children[0]
	assert.Equal(t, "ul", list.Tag)
	assert.Equal(t, [][2]string{{"id", "items"}}, list.Attrs)
	assert.Equal(t, []string{"click"}, list.Events)
	require.Len(t, list.Children, 1)
	require.NotNil(t, list.Children[0].Text)
	assert.Equal(t, "x", *list.Children[0].Text)

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"selector":"#app"`)
	assert.Contains(t, string(data), `"text":"x"`)

	assert.Nil(t, r.Snapshot(r.Inner().CreateElement("div")))
}

func TestRemoveAndReplaceForgetDetachedNodes(t *testing.T) {
	r := NewRecorder(htmldoc.New())
	app, _ := r.Query("#app")
	a := r.CreateElement("p")
	inner := r.CreateText("a")
	r.AppendChild(a, inner)
	r.AppendChild(app, a)
	b := r.CreateElement("p")
	r.AppendChild(app, b)
	aID, innerID, bID := r.ID(a), r.ID(inner), r.ID(b)
	r.Flush()

	r.RemoveChild(app, a)
	ops := r.Flush()
	require.Len(t, ops, 1)
	assert.Equal(t, Op{Kind: OpRemove, ID: aID, Parent: r.ID(app)}, ops[0])
	_, ok := r.Lookup(aID)
	assert.False(t, ok)
	_, ok = r.Lookup(innerID)
	assert.False(t, ok)

	c := r.CreateText("c")
	r.ReplaceChild(app, c, b)
	ops = r.Flush()
	require.Len(t, ops, 2)
	assert.Equal(t, Op{Kind: OpReplace, ID: r.ID(c), Parent: r.ID(app), Ref: bID}, ops[1])
	_, ok = r.Lookup(bID)
	assert.False(t, ok)

	tree := r.Snapshot(app)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "c", *tree.Children[0].Text)

	// The bound mount target survives removal from its parent.
	body, _ := r.Query("body")
	r.RemoveChild(body, app)
	_, ok = r.Lookup(r.ID(app))
	assert.True(t, ok)
}

func TestLastChildRegistersExistingContent(t *testing.T) {
	doc := htmldoc.New()
	app, _ := doc.Query("#app")
	stale := doc.CreateText("server rendered")
	doc.AppendChild(app, stale)

	r := NewRecorder(doc)
	target, _ := r.Query("#app")
	last := r.LastChild(target)
	require.NotNil(t, last)
	id := r.ID(last)
	assert.NotZero(t, id)

	r.RemoveChild(target, last)
	ops := r.Flush()
	assert.Equal(t, Op{Kind: OpRemove, ID: id, Parent: r.ID(target)}, ops[len(ops)-1])
	assert.Equal(t, "", doc.InnerHTML(app))
	assert.Nil(t, r.LastChild(target))
}

func TestCounts(t *testing.T) {
	r := NewRecorder(htmldoc.New())
	r.CreateElement("a")
	r.CreateElement("b")
	r.CreateText("c")
	r.Flush()

	assert.Equal(t, 2, r.Count(OpCreateElement))
	assert.Equal(t, 1, r.Count(OpCreateText))
	assert.Equal(t, 0, r.Count(OpRemove))

	r.ResetCounts()
	assert.Equal(t, 0, r.Count(OpCreateElement))
}

func TestFlushForgetsUnattachedNodes(t *testing.T) {
	r := NewRecorder(htmldoc.New())
	app, _ := r.Query("#app")
	kept := r.CreateElement("p")
	r.AppendChild(app, kept)

	// A render that failed halfway leaves a subtree nobody attached.
	orphan := r.CreateElement("div")
	child := r.CreateElement("button")
	r.AppendChild(orphan, child)
	orphanID, childID := r.ID(orphan), r.ID(child)

	r.Flush()

	_, ok := r.Lookup(orphanID)
	assert.False(t, ok)
	_, ok = r.Lookup(childID)
	assert.False(t, ok)
	assert.Zero(t, r.ID(orphan))

	_, ok = r.Lookup(r.ID(kept))
	assert.True(t, ok)
	_, ok = r.Lookup(r.ID(app))
	assert.True(t, ok)
	require.Len(t, r.Snapshot(app).Children, 1)
}
