package reactive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mistErrors "github.com/conneroisu/mist/internal/errors"
)

func TestWriteNotifiesInSubscriptionOrder(t *testing.T) {
	s := Wrap(map[string]any{"x": 1})
	var calls []string

	s.Track(func(sc *Scope) error {
		s.Get(sc, "x")
		calls = append(calls, "first")
		return nil
	})
	s.Track(func(sc *Scope) error {
		s.Get(sc, "x")
		calls = append(calls, "second")
		return nil
	})
	calls = nil

	s.Set("x", 2)
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	s.Set("x", 2)
	assert.Empty(t, calls, "identical write must not notify")
}

func TestUnrelatedKeyDoesNotNotify(t *testing.T) {
	s := Wrap(map[string]any{"x": 1, "y": 1})
	e := s.Track(func(sc *Scope) error {
		s.Get(sc, "x")
		return nil
	})
	require.Equal(t, 1, e.Runs())

	s.Set("y", 2)
	assert.Equal(t, 1, e.Runs())

	s.Set("x", 2)
	assert.Equal(t, 2, e.Runs())
}

func TestUntrackedReads(t *testing.T) {
	s := Wrap(map[string]any{"x": 1})
	assert.Equal(t, 1, s.Get(nil, "x"))
	assert.Equal(t, 0, s.Root().Signal("x").Dependency().Subscribers())
}

func TestSubscriptionPolicy(t *testing.T) {
	run := func(policy Policy) (*Store, *Effect) {
		s := Wrap(map[string]any{"flag": true, "a": 1, "b": 1}, WithPolicy(policy))
		e := s.Track(func(sc *Scope) error {
			if s.Get(sc, "flag").(bool) {
				s.Get(sc, "a")
			} else {
				s.Get(sc, "b")
			}
			return nil
		})
		s.Set("flag", false)
		return s, e
	}

	t.Run("accumulate keeps stale subscriptions", func(t *testing.T) {
		s, e := run(Accumulate)
		before := e.Runs()
		s.Set("a", 2)
		assert.Equal(t, before+1, e.Runs())
		assert.Equal(t, 3, e.Dependencies())
	})

	t.Run("resubscribe drops them", func(t *testing.T) {
		s, e := run(Resubscribe)
		before := e.Runs()
		s.Set("a", 2)
		assert.Equal(t, before, e.Runs())
		s.Set("b", 2)
		assert.Equal(t, before+1, e.Runs())
		assert.Equal(t, 2, e.Dependencies())
	})
}

func TestReentrantWriteIsSkipped(t *testing.T) {
	s := Wrap(map[string]any{"n": 0})
	e := s.Track(func(sc *Scope) error {
		n := s.Get(sc, "n").(int)
		if n < 5 {
			s.Set("n", n+1)
		}
		return nil
	})
	assert.Equal(t, 1, e.Runs())
	assert.Equal(t, 1, s.Get(nil, "n"))
}

func TestNestedObjects(t *testing.T) {
	s := Wrap(map[string]any{
		"user": map[string]any{"name": "ada", "prefs": map[string]any{"theme": "dark"}},
	})

	var seen []any
	s.Track(func(sc *Scope) error {
		seen = append(seen, s.GetPath(sc, "user.prefs.theme"))
		return nil
	})

	s.SetPath("user.prefs.theme", "light")
	s.SetPath("user.name", "grace")
	assert.Equal(t, []any{"dark", "light"}, seen)

	user := s.Root().Object(nil, "user")
	require.NotNil(t, user)
	assert.Equal(t, "grace", user.Get(nil, "name"))
	assert.Nil(t, s.GetPath(nil, "user.name.length"))
	assert.Nil(t, s.GetPath(nil, "missing.path"))

	s.SetPath("settings.volume", 3)
	assert.Equal(t, 3, s.GetPath(nil, "settings.volume"))
}

func TestSetWrapsMaps(t *testing.T) {
	s := Wrap(nil)
	s.Set("cfg", map[string]any{"debug": true})
	obj, ok := s.Get(nil, "cfg").(*Object)
	require.True(t, ok)
	assert.Equal(t, true, obj.Get(nil, "debug"))
	assert.Equal(t, map[string]any{"cfg": map[string]any{"debug": true}}, s.Snapshot())
}

func TestLateKeysAreReactive(t *testing.T) {
	s := Wrap(map[string]any{})
	e := s.Track(func(sc *Scope) error {
		s.Get(sc, "later")
		return nil
	})
	assert.Empty(t, s.Keys())

	s.Set("later", "now")
	assert.Equal(t, 2, e.Runs())
	assert.Equal(t, []string{"later"}, s.Keys())
}

func TestSlicesAreOpaque(t *testing.T) {
	items := []any{"a"}
	s := Wrap(map[string]any{"items": items})
	e := s.Track(func(sc *Scope) error {
		s.Get(sc, "items")
		return nil
	})

	items[0] = "b"
	s.Set("items", items)
	assert.Equal(t, 1, e.Runs(), "same backing array is the same value")

	s.ForceNotify()
	assert.Equal(t, 2, e.Runs())

	s.Set("items", append([]any(nil), items...))
	assert.Equal(t, 3, e.Runs())
}

func TestForceNotifyTargetsLastEffect(t *testing.T) {
	s := Wrap(nil)
	first := s.Track(func(*Scope) error { return nil })
	second := s.Track(func(*Scope) error { return nil })

	s.ForceNotify()
	assert.Equal(t, 1, first.Runs())
	assert.Equal(t, 2, second.Runs())

	second.Stop()
	s.ForceNotify()
	assert.Equal(t, 1, first.Runs())
}

func TestStop(t *testing.T) {
	s := Wrap(map[string]any{"x": 1})
	e := s.Track(func(sc *Scope) error {
		s.Get(sc, "x")
		return nil
	})
	e.Stop()
	s.Set("x", 2)
	assert.Equal(t, 1, e.Runs())
	assert.Equal(t, 0, s.Root().Signal("x").Dependency().Subscribers())
}

func TestEffectErrors(t *testing.T) {
	var reported []error
	s := Wrap(map[string]any{"x": 1}, WithErrorReporter(func(err error) { reported = append(reported, err) }))

	boom := errors.New("boom")
	s.Track(func(sc *Scope) error {
		if s.Get(sc, "x").(int) > 1 {
			return boom
		}
		return nil
	})
	s.Track(func(sc *Scope) error {
		if s.Get(sc, "x").(int) > 2 {
			panic("view exploded")
		}
		return nil
	})

	s.Set("x", 2)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)

	s.Set("x", 3)
	require.Len(t, reported, 3)
	var me *mistErrors.MistError
	require.ErrorAs(t, reported[2], &me)
	assert.Equal(t, mistErrors.ErrCodeEffectFailed, me.Code)
	assert.Contains(t, reported[2].Error(), "view exploded")
}

func TestReplace(t *testing.T) {
	s := Wrap(map[string]any{"x": 1})
	var seen []any
	s.Track(func(sc *Scope) error {
		seen = append(seen, s.Get(sc, "x"))
		return nil
	})

	s.Replace(map[string]any{"x": 10})
	s.Set("x", 11)
	assert.Equal(t, []any{1, 10, 11}, seen)
}

func TestApply(t *testing.T) {
	s := Wrap(map[string]any{
		"count": 1,
		"todos": []any{"a"},
		"user":  map[string]any{"name": "ada"},
	})
	e := s.Track(func(sc *Scope) error {
		s.Get(sc, "count")
		s.Get(sc, "todos")
		s.GetPath(sc, "user.name")
		return nil
	})

	s.Apply(map[string]any{"count": 1, "todos": []any{"a"}, "user": map[string]any{"name": "ada"}})
	assert.Equal(t, 1, e.Runs(), "unchanged state notifies nobody")

	s.Apply(map[string]any{"user": map[string]any{"name": "grace"}})
	assert.Equal(t, 2, e.Runs())
	assert.Equal(t, "grace", s.GetPath(nil, "user.name"))
}

func TestIdentical(t *testing.T) {
	m := map[string]int{}
	sl := []int{1, 2}
	fn := func() {}

	assert.True(t, identical(nil, nil))
	assert.False(t, identical(nil, 0))
	assert.True(t, identical(1, 1))
	assert.False(t, identical(1, int64(1)))
	assert.True(t, identical(m, m))
	assert.False(t, identical(m, map[string]int{}))
	assert.True(t, identical(sl, sl))
	assert.False(t, identical(sl, sl[:1]))
	assert.False(t, identical(sl, []int{1, 2}))
	assert.True(t, identical(fn, fn))
	type holder struct{ v any }
	assert.False(t, identical(holder{v: sl}, holder{v: sl}))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Resubscribe")
	require.NoError(t, err)
	assert.Equal(t, Resubscribe, p)
	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Accumulate, p)
	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "accumulate", Accumulate.String())
}

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 7, 7},
		{"int8", int8(-3), -3},
		{"int32", int32(40), 40},
		{"int64", int64(9), 9},
		{"uint", uint(5), 5},
		{"uint8", uint8(255), 255},
		{"uint64", uint64(12), 12},
		{"float32", float32(2.9), 2},
		{"float64", 3.0, 3},
		{"string", "4", 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Int(tt.in))
		})
	}
}
