// Package htmldoc implements the vdom host-tree capability on top of an
// in-memory golang.org/x/net/html tree. It backs headless rendering, the
// live preview server and the reconciler tests.
//
// A Document is not safe for concurrent use; it is driven from the
// application's single UI thread.
package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/mist/pkg/vdom"
)

const defaultShell = `<!DOCTYPE html><html><head><title></title></head><body><div id="app"></div></body></html>`

// Document is an in-memory host tree.
type Document struct {
	root      *html.Node
	listeners map[*html.Node]map[string][]vdom.EventHandler
}

var _ vdom.Document = (*Document)(nil)

// New returns a document with an empty <div id="app"> in its body.
func New() *Document {
	doc, err := Parse(strings.NewReader(defaultShell))
	if err != nil {
		panic(fmt.Sprintf("htmldoc: default shell does not parse: %v", err))
	}
	return doc
}

// Parse builds a document from HTML source.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing host document: %w", err)
	}
	return &Document{
		root:      root,
		listeners: make(map[*html.Node]map[string][]vdom.EventHandler),
	}, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

func node(h vdom.Handle) *html.Node {
	if h == nil {
		return nil
	}
	n, _ := h.(*html.Node)
	return n
}

// handle converts a possibly nil node into a Handle without producing a
// typed nil interface.
func handle(n *html.Node) vdom.Handle {
	if n == nil {
		return nil
	}
	return n
}

// CreateElement implements vdom.Document.
func (d *Document) CreateElement(tag string) vdom.Handle {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// CreateText implements vdom.Document.
func (d *Document) CreateText(text string) vdom.Handle {
	return &html.Node{Type: html.TextNode, Data: text}
}

// SetAttribute implements vdom.Document.
func (d *Document) SetAttribute(h vdom.Handle, name, value string) {
	n := node(h)
	if n == nil {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttribute implements vdom.Document.
func (d *Document) RemoveAttribute(h vdom.Handle, name string) {
	n := node(h)
	if n == nil {
		return
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != name {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// Attribute returns one attribute of h.
func (d *Document) Attribute(h vdom.Handle, name string) (string, bool) {
	n := node(h)
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// AddEventListener implements vdom.Document.
func (d *Document) AddEventListener(h vdom.Handle, event string, fn vdom.EventHandler) {
	n := node(h)
	if n == nil || fn == nil {
		return
	}
	byType, ok := d.listeners[n]
	if !ok {
		byType = make(map[string][]vdom.EventHandler)
		d.listeners[n] = byType
	}
	byType[event] = append(byType[event], fn)
}

// Dispatch invokes the listeners bound to h for event and returns how many
// ran. Events do not bubble.
func (d *Document) Dispatch(h vdom.Handle, event string, data map[string]string) int {
	n := node(h)
	if n == nil {
		return 0
	}
	fns := d.listeners[n][event]
	for _, fn := range fns {
		fn(vdom.Event{Type: event, Target: h, Data: data})
	}
	return len(fns)
}

// ListenerCount returns how many listeners are bound to h for event.
func (d *Document) ListenerCount(h vdom.Handle, event string) int {
	n := node(h)
	if n == nil {
		return 0
	}
	return len(d.listeners[n][event])
}

// AppendChild implements vdom.Document. A child that is attached elsewhere
// is moved.
func (d *Document) AppendChild(parent, child vdom.Handle) {
	p, c := node(parent), node(child)
	if p == nil || c == nil {
		return
	}
	detach(c)
	p.AppendChild(c)
}

// RemoveChild implements vdom.Document. It ignores children of other parents.
func (d *Document) RemoveChild(parent, child vdom.Handle) {
	p, c := node(parent), node(child)
	if p == nil || c == nil || c.Parent != p {
		return
	}
	p.RemoveChild(c)
}

// ReplaceChild implements vdom.Document.
func (d *Document) ReplaceChild(parent, newChild, oldChild vdom.Handle) {
	p, nc, oc := node(parent), node(newChild), node(oldChild)
	if p == nil || nc == nil || oc == nil || oc.Parent != p {
		return
	}
	detach(nc)
	p.InsertBefore(nc, oc)
	p.RemoveChild(oc)
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Parent implements vdom.Document.
func (d *Document) Parent(h vdom.Handle) vdom.Handle {
	n := node(h)
	if n == nil {
		return nil
	}
	return handle(n.Parent)
}

// LastChild implements vdom.Document.
func (d *Document) LastChild(h vdom.Handle) vdom.Handle {
	n := node(h)
	if n == nil {
		return nil
	}
	return handle(n.LastChild)
}

// Children returns the child handles of h.
func (d *Document) Children(h vdom.Handle) []vdom.Handle {
	n := node(h)
	if n == nil {
		return nil
	}
	var out []vdom.Handle
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// Query implements vdom.Document.
func (d *Document) Query(selector string) (vdom.Handle, bool) {
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, false
	}
	if n := find(d.root, sel); n != nil {
		return n, true
	}
	return nil, false
}

// SetTitle implements vdom.Document.
func (d *Document) SetTitle(title string) {
	t := find(d.root, simpleSelector{tag: "title"})
	if t == nil {
		head := find(d.root, simpleSelector{tag: "head"})
		if head == nil {
			return
		}
		t = &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		head.AppendChild(t)
	}
	for c := t.FirstChild; c != nil; c = t.FirstChild {
		t.RemoveChild(c)
	}
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
}

// Title returns the current document title.
func (d *Document) Title() string {
	t := find(d.root, simpleSelector{tag: "title"})
	if t == nil {
		return ""
	}
	return textContent(t)
}

// TextContent returns the concatenated text below h.
func (d *Document) TextContent(h vdom.Handle) string {
	n := node(h)
	if n == nil {
		return ""
	}
	return textContent(n)
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// Render writes the whole document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// OuterHTML renders h and its subtree.
func (d *Document) OuterHTML(h vdom.Handle) string {
	n := node(h)
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML renders the children of h.
func (d *Document) InnerHTML(h vdom.Handle) string {
	n := node(h)
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}
