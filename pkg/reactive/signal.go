package reactive

import (
	"reflect"
	"sort"
)

// Dependency records the effects subscribed to one value, in subscription
// order and without duplicates.
type Dependency struct {
	subs  []*Effect
	index map[*Effect]struct{}
}

func newDependency() *Dependency {
	return &Dependency{index: make(map[*Effect]struct{})}
}

func (d *Dependency) depend(e *Effect) {
	if _, ok := d.index[e]; ok {
		return
	}
	d.index[e] = struct{}{}
	d.subs = append(d.subs, e)
	e.deps = append(e.deps, d)
}

func (d *Dependency) remove(e *Effect) {
	if _, ok := d.index[e]; !ok {
		return
	}
	delete(d.index, e)
	for i, s := range d.subs {
		if s == e {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			break
		}
	}
}

// notify runs every subscriber once. The list is copied first so effects
// that resubscribe while running do not disturb the iteration.
func (d *Dependency) notify() {
	subs := append([]*Effect(nil), d.subs...)
	for _, e := range subs {
		e.run()
	}
}

// Subscribers returns how many effects are subscribed.
func (d *Dependency) Subscribers() int { return len(d.subs) }

// Signal is one reactive value.
type Signal struct {
	store   *Store
	key     string
	value   any
	present bool
	dep     *Dependency
}

func newSignal(store *Store, key string) *Signal {
	return &Signal{store: store, key: key, dep: newDependency()}
}

// Key returns the key the signal is stored under.
func (s *Signal) Key() string { return s.key }

// Get returns the value and subscribes scope's effect, if any.
func (s *Signal) Get(scope *Scope) any {
	scope.track(s.dep)
	return s.value
}

// Peek returns the value without subscribing.
func (s *Signal) Peek() any { return s.value }

// Set stores v and notifies subscribers in order. Writing a value identical
// to the current one is a no-op. Plain map[string]any values are wrapped
// into reactive objects.
func (s *Signal) Set(v any) {
	if s.present && identical(s.value, v) {
		return
	}
	if m, ok := v.(map[string]any); ok {
		v = s.store.wrapObject(m)
	}
	s.value = v
	s.present = true
	s.dep.notify()
}

// Dependency returns the signal's dependency record.
func (s *Signal) Dependency() *Dependency { return s.dep }

// Object is a keyed container of signals. Nested plain maps become nested
// objects; slices are stored as opaque values and in-place mutation of
// their elements is not observed.
type Object struct {
	store   *Store
	keys    []string
	signals map[string]*Signal
}

func (st *Store) wrapObject(m map[string]any) *Object {
	o := &Object{store: st, signals: make(map[string]*Signal, len(m))}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Go maps have no order; wrapping in key order keeps Keys stable.
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		if nested, ok := v.(map[string]any); ok {
			v = st.wrapObject(nested)
		}
		sig := o.signal(k)
		sig.value = v
		sig.present = true
	}
	return o
}

// signal returns the signal for key, creating it on first use.
func (o *Object) signal(key string) *Signal {
	if sig, ok := o.signals[key]; ok {
		return sig
	}
	sig := newSignal(o.store, key)
	o.signals[key] = sig
	o.keys = append(o.keys, key)
	return sig
}

// Signal returns the signal for key, creating an empty one on first use so
// effects can subscribe to keys that are written later.
func (o *Object) Signal(key string) *Signal { return o.signal(key) }

// Get returns the value under key and subscribes scope's effect.
func (o *Object) Get(scope *Scope, key string) any {
	return o.signal(key).Get(scope)
}

// Has reports whether key holds a value.
func (o *Object) Has(key string) bool {
	sig, ok := o.signals[key]
	return ok && sig.present
}

// Object returns the nested object under key, or nil.
func (o *Object) Object(scope *Scope, key string) *Object {
	nested, _ := o.Get(scope, key).(*Object)
	return nested
}

// Set writes key.
func (o *Object) Set(key string, v any) {
	o.signal(key).Set(v)
}

// Keys returns the keys holding values, in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		if o.signals[k].present {
			out = append(out, k)
		}
	}
	return out
}

// Snapshot returns the object as plain maps without subscribing.
func (o *Object) Snapshot() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.Keys() {
		v := o.signals[k].value
		if nested, ok := v.(*Object); ok {
			v = nested.Snapshot()
		}
		out[k] = v
	}
	return out
}

// Apply merges m into the object key by key. Nested maps merge into nested
// objects; values deeply equal to the current ones are left untouched so a
// reload of unchanged state notifies nobody.
func (o *Object) Apply(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		sig := o.signal(k)
		if nested, ok := v.(map[string]any); ok {
			if current, ok := sig.value.(*Object); ok {
				current.Apply(nested)
				continue
			}
		}
		if sig.present && reflect.DeepEqual(sig.value, v) {
			continue
		}
		sig.Set(v)
	}
}

// identical reports strict identity: == for comparable values, pointer
// identity for slices, maps and funcs.
func identical(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		defer func() {
			// Interface fields holding uncomparable values panic on ==.
			if recover() != nil {
				same = false
			}
		}()
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ta.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	default:
		return false
	}
}
