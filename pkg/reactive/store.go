// Package reactive provides the application state store: a tree of signals
// whose reads, made through an explicit Scope, subscribe the running effect
// and whose writes re-run every subscribed effect synchronously.
//
// A Store is not safe for concurrent use. Callers that accept input from
// several goroutines serialise access themselves (see app.Dispatch).
package reactive

import (
	"fmt"
	"strings"

	"github.com/conneroisu/mist/internal/logging"
)

// Policy controls how an effect's subscriptions evolve across runs.
type Policy int

const (
	// Accumulate keeps every subscription an effect ever made. An effect
	// that stops reading a key is still re-run when that key changes.
	Accumulate Policy = iota
	// Resubscribe drops an effect's subscriptions before each run so it
	// only tracks what the latest run read.
	Resubscribe
)

func (p Policy) String() string {
	switch p {
	case Accumulate:
		return "accumulate"
	case Resubscribe:
		return "resubscribe"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses "accumulate" or "resubscribe".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "accumulate":
		return Accumulate, nil
	case "resubscribe":
		return Resubscribe, nil
	default:
		return Accumulate, fmt.Errorf("unknown subscription policy %q", s)
	}
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the subscription policy.
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithErrorReporter routes effect failures to fn instead of the logger.
func WithErrorReporter(fn func(error)) Option {
	return func(s *Store) { s.reporter = fn }
}

// WithLogger sets the logger used for unreported effect failures.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent("reactive") }
}

// Store is the reactive state container.
type Store struct {
	root     *Object
	policy   Policy
	reporter func(error)
	logger   logging.Logger
	effects  []*Effect
	last     *Effect
}

// Wrap builds a store over initial. Nested map[string]any values become
// nested reactive objects.
func Wrap(initial map[string]any, opts ...Option) *Store {
	s := &Store{logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if initial == nil {
		initial = map[string]any{}
	}
	s.root = s.wrapObject(initial)
	return s
}

// Policy returns the subscription policy.
func (s *Store) Policy() Policy { return s.policy }

// Root returns the top-level object.
func (s *Store) Root() *Object { return s.root }

// Replace swaps the whole state for initial and re-runs every live effect
// so it subscribes to the new values.
func (s *Store) Replace(initial map[string]any) {
	if initial == nil {
		initial = map[string]any{}
	}
	for _, e := range s.effects {
		e.clearDeps()
	}
	s.root = s.wrapObject(initial)
	for _, e := range s.liveEffects() {
		e.run()
	}
}

func (s *Store) liveEffects() []*Effect {
	live := s.effects[:0]
	for _, e := range s.effects {
		if !e.stopped {
			live = append(live, e)
		}
	}
	s.effects = live
	return append([]*Effect(nil), live...)
}

// Get reads a top-level key.
func (s *Store) Get(scope *Scope, key string) any {
	return s.root.Get(scope, key)
}

// Set writes a top-level key.
func (s *Store) Set(key string, v any) {
	s.root.Set(key, v)
}

// GetPath reads a dot-separated path such as "user.name". Every object on
// the path is subscribed. Missing segments yield nil.
func (s *Store) GetPath(scope *Scope, path string) any {
	obj := s.root
	parts := strings.Split(path, ".")
	for i, p := range parts {
		v := obj.Get(scope, p)
		if i == len(parts)-1 {
			return v
		}
		next, ok := v.(*Object)
		if !ok {
			return nil
		}
		obj = next
	}
	return nil
}

// SetPath writes a dot-separated path, creating intermediate objects.
func (s *Store) SetPath(path string, v any) {
	obj := s.root
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := obj.signal(p).Peek().(*Object)
		if !ok {
			next = s.wrapObject(nil)
			obj.Set(p, next)
		}
		obj = next
	}
	obj.Set(parts[len(parts)-1], v)
}

// Keys returns the top-level keys holding values.
func (s *Store) Keys() []string { return s.root.Keys() }

// Snapshot returns the state as plain maps without subscribing.
func (s *Store) Snapshot() map[string]any { return s.root.Snapshot() }

// Apply merges m into the state; see Object.Apply.
func (s *Store) Apply(m map[string]any) { s.root.Apply(m) }
