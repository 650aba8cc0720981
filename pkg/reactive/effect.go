package reactive

import (
	"context"

	"github.com/conneroisu/mist/internal/errors"
)

// Scope is the execution context of one effect run. Reads that receive the
// scope subscribe its effect; reads with a nil scope are untracked. Scopes
// replace an ambient "active effect" register, so nested tracking is well
// defined: each Track call owns its own scope.
type Scope struct {
	store  *Store
	effect *Effect
}

// Store returns the store the scope reads from.
func (s *Scope) Store() *Store {
	if s == nil {
		return nil
	}
	return s.store
}

// Effect returns the effect being evaluated, or nil.
func (s *Scope) Effect() *Effect {
	if s == nil {
		return nil
	}
	return s.effect
}

func (s *Scope) track(d *Dependency) {
	if s == nil || s.effect == nil || s.effect.stopped {
		return
	}
	d.depend(s.effect)
}

// Effect is a callback re-run whenever a value it read is written.
type Effect struct {
	store   *Store
	fn      func(*Scope) error
	deps    []*Dependency
	running bool
	stopped bool
	runs    int
}

// Run evaluates the effect now, as a notification would.
func (e *Effect) Run() {
	e.run()
}

func (e *Effect) run() {
	// A write made by the effect to a value it reads must not re-enter it.
	if e.stopped || e.running {
		return
	}
	if e.store.policy == Resubscribe {
		e.clearDeps()
	}

	e.running = true
	err := e.invoke()
	e.running = false
	e.runs++

	if err != nil {
		e.store.report(errors.Wrap(err, errors.ErrorTypeState, errors.ErrCodeEffectFailed, "effect failed"))
	}
}

func (e *Effect) invoke() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
		}
	}()
	return e.fn(&Scope{store: e.store, effect: e})
}

func (e *Effect) clearDeps() {
	for _, d := range e.deps {
		d.remove(e)
	}
	e.deps = e.deps[:0]
}

// Stop unsubscribes the effect; it never runs again.
func (e *Effect) Stop() {
	e.stopped = true
	e.clearDeps()
	if e.store.last == e {
		e.store.last = nil
	}
}

// Runs returns how many times the effect has been evaluated.
func (e *Effect) Runs() int { return e.runs }

// Dependencies returns how many values the effect is subscribed to.
func (e *Effect) Dependencies() int { return len(e.deps) }

// Track runs fn once with a fresh scope, subscribing it to everything it
// reads, and re-runs it whenever one of those values is written. Errors and
// panics from fn go to the store's error reporter.
func (st *Store) Track(fn func(*Scope) error) *Effect {
	e := &Effect{store: st, fn: fn}
	st.last = e
	st.effects = append(st.effects, e)
	e.run()
	return e
}

// ForceNotify re-runs the most recently tracked effect. It is the escape
// hatch for mutations the store cannot observe, such as changing elements
// of a slice in place.
func (st *Store) ForceNotify() {
	if st.last == nil {
		return
	}
	st.last.run()
}

func (st *Store) report(err error) {
	if st.reporter != nil {
		st.reporter(err)
		return
	}
	st.logger.Error(context.Background(), err, "Effect failed")
}
