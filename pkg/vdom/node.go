// Package vdom provides the virtual node tree and the reconciler that keeps
// a host tree in sync with it.
//
// A Node describes one element or text leaf. Nodes are built with New (or
// its must-variant H), rendered into a Document by a Reconciler, and patched
// in place with Reconciler.Update when a newer description of the same tree
// is available:
//
//	r := vdom.NewReconciler(doc)
//	view := vdom.H("div", nil, "hello")
//	if _, err := r.Mount("#app", view); err != nil {
//	    return err
//	}
//	next := vdom.H("div", nil, "world")
//	if err := r.Update(view, next); err != nil {
//	    return err
//	}
//
// Properties whose name starts with "on" are event bindings and must hold an
// EventHandler (or a func(Event) / func()). They are bound once at render and
// never re-bound by Update.
package vdom

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/conneroisu/mist/internal/errors"
)

// EventPrefix marks a property name as an event binding.
const EventPrefix = "on"

// Event is delivered to event handlers by the host document.
type Event struct {
	Type   string
	Target Handle
	Data   map[string]string
}

// EventHandler handles a host event.
type EventHandler func(Event)

// Prop is one named property of an element.
type Prop struct {
	Name  string
	Value any
}

// Props is an ordered property list.
type Props []Prop

// Get returns the value of the named property.
func (p Props) Get(name string) (any, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return nil, false
}

// Names returns the property names in order.
func (p Props) Names() []string {
	names := make([]string, len(p))
	for i, prop := range p {
		names[i] = prop.Name
	}
	return names
}

// ChildMode selects how an element's children are reconciled.
type ChildMode int

const (
	// ModeAuto defers to the reconciler's keyed-tag set.
	ModeAuto ChildMode = iota
	// ModeKeyed filters shrinking child lists by key before the positional pass.
	ModeKeyed
	// ModePositional always diffs children by index.
	ModePositional
)

// Node is a virtual element or text node.
type Node struct {
	tag      string
	props    Props
	children []*Node
	text     string
	isText   bool
	mode     ChildMode

	// host is reassigned during reconciliation, never recreated for a
	// subtree that is only patched.
	host Handle
}

// New builds an element node. Children may be *Node, string, any integer or
// float, []*Node, []string or []any; sequences are flattened one level and
// strings and numbers become text nodes.
func New(tag string, props Props, children ...any) (*Node, error) {
	if tag == "" {
		return nil, errors.InvalidNodeDescriptor(tag, "element has an empty tag name")
	}

	normalized, err := normalizeProps(tag, props)
	if err != nil {
		return nil, err
	}

	n := &Node{tag: tag, props: normalized}
	for _, child := range children {
		n.children, err = appendChild(tag, n.children, child, 0)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// H is like New but panics with the construction error. The application
// driver recovers these panics while building views.
func H(tag string, props Props, children ...any) *Node {
	n, err := New(tag, props, children...)
	if err != nil {
		panic(err)
	}
	return n
}

// Text builds a text node.
func Text(s string) *Node {
	return &Node{text: s, isText: true}
}

// Textf builds a text node from a format string.
func Textf(format string, args ...any) *Node {
	return Text(fmt.Sprintf(format, args...))
}

// Keyed marks n so its children are reconciled in keyed mode.
func (n *Node) Keyed() *Node {
	n.mode = ModeKeyed
	return n
}

// Positional marks n so its children are always diffed by index.
func (n *Node) Positional() *Node {
	n.mode = ModePositional
	return n
}

// Tag returns the element tag, empty for text nodes.
func (n *Node) Tag() string { return n.tag }

// Text returns the text of a text node.
func (n *Node) Text() string { return n.text }

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n.isText }

// Props returns the element properties.
func (n *Node) Props() Props { return n.props }

// Prop returns one property value.
func (n *Node) Prop(name string) (any, bool) { return n.props.Get(name) }

// Children returns the child nodes.
func (n *Node) Children() []*Node { return n.children }

// Mode returns the child reconciliation mode.
func (n *Node) Mode() ChildMode { return n.mode }

// Host returns the live host handle, or nil before render.
func (n *Node) Host() Handle { return n.host }

// Equal compares two trees structurally. Event properties are compared by
// presence only since handlers have no meaningful equality.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.isText != other.isText || n.text != other.text || n.tag != other.tag {
		return false
	}
	if len(n.props) != len(other.props) || len(n.children) != len(other.children) {
		return false
	}
	for _, p := range n.props {
		v, ok := other.props.Get(p.Name)
		if !ok {
			return false
		}
		if !IsEventName(p.Name) && v != p.Value {
			return false
		}
	}
	for i := range n.children {
		if !n.children[i].Equal(other.children[i]) {
			return false
		}
	}
	return true
}

// String renders a compact debug form.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.isText {
		return strconv.Quote(n.text)
	}
	var b strings.Builder
	b.WriteString("<" + n.tag)
	for _, p := range n.props {
		if IsEventName(p.Name) {
			fmt.Fprintf(&b, " %s={fn}", p.Name)
			continue
		}
		fmt.Fprintf(&b, " %s=%q", p.Name, formatValue(p.Value))
	}
	b.WriteString(">")
	for _, c := range n.children {
		b.WriteString(c.String())
	}
	b.WriteString("</" + n.tag + ">")
	return b.String()
}

// IsEventName reports whether a property name is reserved for events.
func IsEventName(name string) bool {
	return strings.HasPrefix(name, EventPrefix)
}

func appendChild(tag string, out []*Node, child any, depth int) ([]*Node, error) {
	switch v := child.(type) {
	case *Node:
		if v == nil {
			return out, errors.InvalidNodeDescriptor(tag, "nil child node")
		}
		return append(out, v), nil
	case string:
		return append(out, Text(v)), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return append(out, Text(formatValue(v))), nil
	case []*Node, []string, []any:
		if depth > 0 {
			return out, errors.InvalidNodeDescriptor(tag, "child sequences nest more than one level")
		}
		rv := reflect.ValueOf(v)
		var err error
		for i := 0; i < rv.Len(); i++ {
			out, err = appendChild(tag, out, rv.Index(i).Interface(), depth+1)
			if err != nil {
				return out, err
			}
		}
		return out, nil
	default:
		return out, errors.InvalidNodeDescriptor(tag, "child of type %T is neither a node nor a string or number", child)
	}
}

// normalizeProps checks property values and collapses duplicate names; a
// later duplicate overrides the value but keeps the first position.
func normalizeProps(tag string, props Props) (Props, error) {
	if len(props) == 0 {
		return nil, nil
	}
	out := make(Props, 0, len(props))
	index := make(map[string]int, len(props))
	for _, p := range props {
		if p.Name == "" {
			return nil, errors.InvalidNodeDescriptor(tag, "property with empty name")
		}
		if !IsEventName(p.Name) && !isPrimitive(p.Value) {
			return nil, errors.InvalidNodeDescriptor(tag, "property %s has non-primitive value of type %T", p.Name, p.Value)
		}
		if i, ok := index[p.Name]; ok {
			out[i].Value = p.Value
			continue
		}
		index[p.Name] = len(out)
		out = append(out, p)
	}
	return out, nil
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// asHandler accepts the callable shapes allowed for event properties.
func asHandler(v any) (EventHandler, bool) {
	switch fn := v.(type) {
	case EventHandler:
		return fn, fn != nil
	case func(Event):
		return fn, fn != nil
	case func():
		if fn == nil {
			return nil, false
		}
		return func(Event) { fn() }, true
	}
	return nil, false
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
