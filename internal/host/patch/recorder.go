// Package patch records the host-tree mutations issued by the reconciler as
// serialisable operations. A Recorder wraps any vdom.Document, forwards every
// call to it and keeps a mirror of the tree keyed by numeric ids so the same
// mutations can be replayed on a remote document, such as a browser page
// connected to the preview server.
package patch

import (
	"github.com/conneroisu/mist/pkg/vdom"
)

// OpKind names a recorded mutation.
type OpKind string

const (
	OpBind          OpKind = "bind"
	OpCreateElement OpKind = "create_element"
	OpCreateText    OpKind = "create_text"
	OpSetAttr       OpKind = "set_attr"
	OpRemoveAttr    OpKind = "remove_attr"
	OpListen        OpKind = "listen"
	OpAppend        OpKind = "append"
	OpRemove        OpKind = "remove"
	OpReplace       OpKind = "replace"
	OpTitle         OpKind = "title"
)

// Op is one recorded mutation. ID is the subject node; Parent and Ref name
// the parent and, for replace, the node being replaced.
type Op struct {
	Kind   OpKind `json:"op"`
	ID     int    `json:"id,omitempty"`
	Parent int    `json:"parent,omitempty"`
	Ref    int    `json:"ref,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Tree is a serialisable snapshot of a recorded subtree.
type Tree struct {
	ID       int         `json:"id"`
	Tag      string      `json:"tag,omitempty"`
	Text     *string     `json:"text,omitempty"`
	Selector string      `json:"selector,omitempty"`
	Attrs    [][2]string `json:"attrs,omitempty"`
	Events   []string    `json:"events,omitempty"`
	Children []*Tree     `json:"children,omitempty"`
}

type entry struct {
	id       int
	tag      string
	text     *string
	selector string
	attrs    [][2]string
	events   []string
	parent   int
	children []int
}

// Recorder is a vdom.Document that records every mutation.
type Recorder struct {
	inner   vdom.Document
	ids     map[vdom.Handle]int
	handles map[int]vdom.Handle
	entries map[int]*entry
	next    int
	ops     []Op
	counts  map[OpKind]int
}

var _ vdom.Document = (*Recorder)(nil)

// NewRecorder wraps inner.
func NewRecorder(inner vdom.Document) *Recorder {
	return &Recorder{
		inner:   inner,
		ids:     make(map[vdom.Handle]int),
		handles: make(map[int]vdom.Handle),
		entries: make(map[int]*entry),
		counts:  make(map[OpKind]int),
	}
}

// Inner returns the wrapped document.
func (r *Recorder) Inner() vdom.Document { return r.inner }

func (r *Recorder) register(h vdom.Handle, e *entry) int {
	r.next++
	e.id = r.next
	r.ids[h] = e.id
	r.handles[e.id] = h
	r.entries[e.id] = e
	return e.id
}

func (r *Recorder) id(h vdom.Handle) int {
	if h == nil {
		return 0
	}
	return r.ids[h]
}

// Lookup returns the handle recorded under id.
func (r *Recorder) Lookup(id int) (vdom.Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// ID returns the id recorded for h, or 0.
func (r *Recorder) ID(h vdom.Handle) int { return r.id(h) }

func (r *Recorder) record(op Op) {
	r.ops = append(r.ops, op)
	r.counts[op.Kind]++
}

// Flush returns and clears the operations recorded since the last flush.
// Nodes that were created but never attached, such as the remains of a
// failed render, are forgotten.
func (r *Recorder) Flush() []Op {
	r.sweep()
	ops := r.ops
	r.ops = nil
	return ops
}

// Pending returns how many operations are waiting to be flushed.
func (r *Recorder) Pending() int { return len(r.ops) }

// Count returns how many operations of kind were recorded in total.
func (r *Recorder) Count(kind OpKind) int { return r.counts[kind] }

// ResetCounts zeroes the totals returned by Count.
func (r *Recorder) ResetCounts() { r.counts = make(map[OpKind]int) }

// CreateElement implements vdom.Document.
func (r *Recorder) CreateElement(tag string) vdom.Handle {
	h := r.inner.CreateElement(tag)
	id := r.register(h, &entry{tag: tag})
	r.record(Op{Kind: OpCreateElement, ID: id, Tag: tag})
	return h
}

// CreateText implements vdom.Document.
func (r *Recorder) CreateText(text string) vdom.Handle {
	h := r.inner.CreateText(text)
	t := text
	id := r.register(h, &entry{text: &t})
	r.record(Op{Kind: OpCreateText, ID: id, Value: text})
	return h
}

// SetAttribute implements vdom.Document.
func (r *Recorder) SetAttribute(h vdom.Handle, name, value string) {
	r.inner.SetAttribute(h, name, value)
	id := r.id(h)
	if e := r.entries[id]; e != nil {
		replaced := false
		for i := range e.attrs {
			if e.attrs[i][0] == name {
				e.attrs[i][1] = value
				replaced = true
				break
			}
		}
		if !replaced {
			e.attrs = append(e.attrs, [2]string{name, value})
		}
	}
	r.record(Op{Kind: OpSetAttr, ID: id, Name: name, Value: value})
}

// RemoveAttribute implements vdom.Document.
func (r *Recorder) RemoveAttribute(h vdom.Handle, name string) {
	r.inner.RemoveAttribute(h, name)
	id := r.id(h)
	if e := r.entries[id]; e != nil {
		kept := e.attrs[:0]
		for _, a := range e.attrs {
			if a[0] != name {
				kept = append(kept, a)
			}
		}
		e.attrs = kept
	}
	r.record(Op{Kind: OpRemoveAttr, ID: id, Name: name})
}

// AddEventListener implements vdom.Document.
func (r *Recorder) AddEventListener(h vdom.Handle, event string, fn vdom.EventHandler) {
	r.inner.AddEventListener(h, event, fn)
	id := r.id(h)
	if e := r.entries[id]; e != nil {
		e.events = append(e.events, event)
	}
	r.record(Op{Kind: OpListen, ID: id, Name: event})
}

// AppendChild implements vdom.Document.
func (r *Recorder) AppendChild(parent, child vdom.Handle) {
	r.inner.AppendChild(parent, child)
	pid, cid := r.id(parent), r.id(child)
	r.unlink(cid)
	if p := r.entries[pid]; p != nil {
		p.children = append(p.children, cid)
	}
	if c := r.entries[cid]; c != nil {
		c.parent = pid
	}
	r.record(Op{Kind: OpAppend, ID: cid, Parent: pid})
}

// RemoveChild implements vdom.Document.
func (r *Recorder) RemoveChild(parent, child vdom.Handle) {
	r.inner.RemoveChild(parent, child)
	pid, cid := r.id(parent), r.id(child)
	if c := r.entries[cid]; c != nil && c.parent == pid {
		r.unlink(cid)
	}
	r.record(Op{Kind: OpRemove, ID: cid, Parent: pid})
	r.forget(cid)
}

// ReplaceChild implements vdom.Document.
func (r *Recorder) ReplaceChild(parent, newChild, oldChild vdom.Handle) {
	r.inner.ReplaceChild(parent, newChild, oldChild)
	pid, nid, oid := r.id(parent), r.id(newChild), r.id(oldChild)
	r.unlink(nid)
	if p := r.entries[pid]; p != nil {
		for i, c := range p.children {
			if c == oid {
				p.children[i] = nid
				break
			}
		}
	}
	if n := r.entries[nid]; n != nil {
		n.parent = pid
	}
	if o := r.entries[oid]; o != nil {
		o.parent = 0
	}
	r.record(Op{Kind: OpReplace, ID: nid, Parent: pid, Ref: oid})
	r.forget(oid)
}

// unlink removes id from its recorded parent.
func (r *Recorder) unlink(id int) {
	e := r.entries[id]
	if e == nil || e.parent == 0 {
		return
	}
	if p := r.entries[e.parent]; p != nil {
		for i, c := range p.children {
			if c == id {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	e.parent = 0
}

// sweep forgets every unbound subtree root that has no parent in the
// wrapped document.
func (r *Recorder) sweep() {
	for id, e := range r.entries {
		if e.parent == 0 && e.selector == "" && r.inner.Parent(r.handles[id]) == nil {
			r.forget(id)
		}
	}
}

// forget drops a detached subtree from the id maps. Bound mount targets
// are kept.
func (r *Recorder) forget(id int) {
	e := r.entries[id]
	if e == nil || e.parent != 0 || e.selector != "" {
		return
	}
	for _, c := range e.children {
		if ce := r.entries[c]; ce != nil {
			ce.parent = 0
			r.forget(c)
		}
	}
	h := r.handles[id]
	delete(r.entries, id)
	delete(r.handles, id)
	delete(r.ids, h)
}

// Parent implements vdom.Document.
func (r *Recorder) Parent(h vdom.Handle) vdom.Handle { return r.inner.Parent(h) }

// LastChild implements vdom.Document.
func (r *Recorder) LastChild(h vdom.Handle) vdom.Handle {
	last := r.inner.LastChild(h)
	if last != nil && r.id(last) == 0 {
		// Pre-existing content of a mount target; register it so its removal
		// can be replayed.
		r.register(last, &entry{parent: r.id(h)})
	}
	return last
}

// Query implements vdom.Document. Matched targets are bound to an id so the
// remote side can resolve them with the same selector.
func (r *Recorder) Query(selector string) (vdom.Handle, bool) {
	h, ok := r.inner.Query(selector)
	if !ok {
		return nil, false
	}
	if id := r.id(h); id != 0 {
		return h, true
	}
	id := r.register(h, &entry{selector: selector})
	r.record(Op{Kind: OpBind, ID: id, Value: selector})
	return h, true
}

// SetTitle implements vdom.Document.
func (r *Recorder) SetTitle(title string) {
	r.inner.SetTitle(title)
	r.record(Op{Kind: OpTitle, Value: title})
}

// Snapshot returns the recorded subtree under h, or nil if h is unknown.
func (r *Recorder) Snapshot(h vdom.Handle) *Tree {
	return r.snapshot(r.id(h))
}

func (r *Recorder) snapshot(id int) *Tree {
	e := r.entries[id]
	if e == nil {
		return nil
	}
	t := &Tree{
		ID:       e.id,
		Tag:      e.tag,
		Text:     e.text,
		Selector: e.selector,
		Attrs:    append([][2]string(nil), e.attrs...),
		Events:   append([]string(nil), e.events...),
	}
	for _, c := range e.children {
		if ct := r.snapshot(c); ct != nil {
			t.Children = append(t.Children, ct)
		}
	}
	return t
}
