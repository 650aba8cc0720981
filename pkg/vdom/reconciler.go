package vdom

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/mist/internal/errors"
)

// Stats counts host-tree operations issued by a Reconciler.
type Stats struct {
	Created     int // host nodes created by Render
	Replaced    int // full replacements during Update
	AttrSets    int
	AttrRemoves int
	Listeners   int
	Appended    int
	Removed     int
}

// Reconciler renders nodes into a Document and patches them in place.
// It is not safe for concurrent use; callers serialise work onto one
// logical UI thread.
type Reconciler struct {
	doc       Document
	keyedTags map[string]bool
	keyProp   string
	lower     cases.Caser
	stats     Stats
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithKeyedTags sets the tags whose children are reconciled in keyed mode
// when a node does not choose a mode itself. The default is {"ul"}.
func WithKeyedTags(tags ...string) Option {
	return func(r *Reconciler) {
		r.keyedTags = make(map[string]bool, len(tags))
		for _, t := range tags {
			r.keyedTags[t] = true
		}
	}
}

// WithKeyProp sets the property used to match children in keyed mode.
// The default is "id".
func WithKeyProp(name string) Option {
	return func(r *Reconciler) {
		if name != "" {
			r.keyProp = name
		}
	}
}

// NewReconciler creates a reconciler bound to doc.
func NewReconciler(doc Document, opts ...Option) *Reconciler {
	r := &Reconciler{
		doc:       doc,
		keyedTags: map[string]bool{"ul": true},
		keyProp:   "id",
		lower:     cases.Lower(language.Und),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Document returns the bound host document.
func (r *Reconciler) Document() Document { return r.doc }

// Stats returns the operation counters.
func (r *Reconciler) Stats() Stats { return r.stats }

// ResetStats zeroes the operation counters.
func (r *Reconciler) ResetStats() { r.stats = Stats{} }

// Render materialises n and its subtree into new host nodes and records the
// handles on the nodes. It is the only operation that creates host nodes.
func (r *Reconciler) Render(n *Node) (Handle, error) {
	if n.isText {
		h := r.doc.CreateText(n.text)
		r.stats.Created++
		n.host = h
		return h, nil
	}

	h := r.doc.CreateElement(n.tag)
	r.stats.Created++
	for _, p := range n.props {
		if IsEventName(p.Name) {
			fn, ok := asHandler(p.Value)
			if !ok {
				return nil, errors.InvalidEventBinding(n.tag, p.Name, p.Value)
			}
			r.doc.AddEventListener(h, r.eventType(p.Name), fn)
			r.stats.Listeners++
			continue
		}
		r.setProp(h, p.Name, p.Value)
	}
	for _, child := range n.children {
		ch, err := r.Render(child)
		if err != nil {
			return nil, err
		}
		r.doc.AppendChild(h, ch)
	}
	n.host = h
	return h, nil
}

// Mount renders n and makes it the sole child of the element matched by
// selector. It returns the target handle.
func (r *Reconciler) Mount(selector string, n *Node) (Handle, error) {
	target, ok := r.doc.Query(selector)
	if !ok {
		return nil, errors.MountTargetNotFound(selector)
	}
	h, err := r.Render(n)
	if err != nil {
		return nil, err
	}
	r.attach(target, h)
	return target, nil
}

// MountHandle makes an already rendered handle the sole child of the element
// matched by selector.
func (r *Reconciler) MountHandle(selector string, h Handle) (Handle, error) {
	target, ok := r.doc.Query(selector)
	if !ok {
		return nil, errors.MountTargetNotFound(selector)
	}
	r.attach(target, h)
	return target, nil
}

func (r *Reconciler) attach(target, h Handle) {
	for last := r.doc.LastChild(target); last != nil; last = r.doc.LastChild(target) {
		r.doc.RemoveChild(target, last)
		r.stats.Removed++
	}
	r.doc.AppendChild(target, h)
	r.stats.Appended++
}

// Update patches the host tree rendered for old so it matches next. next
// adopts old's host handle unless the node has to be replaced. A nil next
// detaches old.
//
// Failures are not rolled back: an error stops the walk and the host tree
// keeps the operations already applied.
func (r *Reconciler) Update(old, next *Node) error {
	h := old.host
	if next == nil {
		if parent := r.doc.Parent(h); parent != nil {
			r.doc.RemoveChild(parent, h)
			r.stats.Removed++
		}
		return nil
	}

	next.host = h

	if old.isText || next.isText {
		if old.isText && next.isText && old.text == next.text {
			return nil
		}
		return r.replace(next, h)
	}

	if old.tag != next.tag {
		return r.replace(next, h)
	}

	if err := r.UpdateProperties(old, next); err != nil {
		return err
	}

	oldChildren := old.children
	if r.keyed(old, next) && len(oldChildren) > len(next.children) {
		oldChildren = r.filterByKey(h, oldChildren, next.children)
	}

	newCount, oldCount := len(next.children), len(oldChildren)

	for i := 0; i < newCount && i < oldCount; i++ {
		if err := r.Update(oldChildren[i], next.children[i]); err != nil {
			return err
		}
	}

	for i := newCount; i < oldCount; i++ {
		r.doc.RemoveChild(h, oldChildren[i].host)
		r.stats.Removed++
	}

	for i := oldCount; i < newCount; i++ {
		ch, err := r.Render(next.children[i])
		if err != nil {
			return err
		}
		r.doc.AppendChild(h, ch)
		r.stats.Appended++
	}
	return nil
}

// replace renders next fresh and swaps it in for the handle at old.
func (r *Reconciler) replace(next *Node, old Handle) error {
	nh, err := r.Render(next)
	if err != nil {
		return err
	}
	if parent := r.doc.Parent(old); parent != nil {
		r.doc.ReplaceChild(parent, nh, old)
	}
	r.stats.Replaced++
	return nil
}

func (r *Reconciler) keyed(old, next *Node) bool {
	switch {
	case next.mode != ModeAuto:
		return next.mode == ModeKeyed
	case old.mode != ModeAuto:
		return old.mode == ModeKeyed
	default:
		return r.keyedTags[next.tag]
	}
}

// filterByKey keeps the old children whose key matches some new child and
// detaches the rest from parent. Children without the key property match
// each other.
func (r *Reconciler) filterByKey(parent Handle, old, next []*Node) []*Node {
	kept := make([]*Node, 0, len(next))
	for _, child := range old {
		key, _ := child.props.Get(r.keyProp)
		matched := false
		for _, candidate := range next {
			if ck, _ := candidate.props.Get(r.keyProp); ck == key {
				matched = true
				break
			}
		}
		if matched {
			kept = append(kept, child)
			continue
		}
		r.doc.RemoveChild(parent, child.host)
		r.stats.Removed++
	}
	return kept
}

// UpdateProperties reconciles the attributes of old's host node against
// next's properties. Unchanged values are not written. Event properties are
// validated but never re-bound.
func (r *Reconciler) UpdateProperties(old, next *Node) error {
	h := old.host
	seen := make(map[string]bool, len(old.props)+len(next.props))
	names := make([]string, 0, len(old.props)+len(next.props))
	for _, p := range next.props {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	for _, p := range old.props {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}

	for _, name := range names {
		newValue, inNew := next.props.Get(name)
		oldValue, inOld := old.props.Get(name)

		if IsEventName(name) {
			if inNew {
				if _, ok := asHandler(newValue); !ok {
					return errors.InvalidEventBinding(next.tag, name, newValue)
				}
			}
			continue
		}

		switch {
		case !inNew:
			r.removeProp(h, name)
		case !inOld || newValue != oldValue:
			r.setProp(h, name, newValue)
		}
	}
	return nil
}

func (r *Reconciler) setProp(h Handle, name string, value any) {
	if name == "className" {
		name = "class"
	}
	if b, ok := value.(bool); ok && !b {
		r.doc.RemoveAttribute(h, name)
		r.stats.AttrRemoves++
		return
	}
	if _, ok := value.(bool); ok {
		r.doc.SetAttribute(h, name, "")
	} else {
		r.doc.SetAttribute(h, name, formatValue(value))
	}
	r.stats.AttrSets++
}

func (r *Reconciler) removeProp(h Handle, name string) {
	if name == "className" {
		name = "class"
	}
	r.doc.RemoveAttribute(h, name)
	r.stats.AttrRemoves++
}

// eventType turns "onClick" into "click".
func (r *Reconciler) eventType(name string) string {
	return r.lower.String(name[len(EventPrefix):])
}
