//go:build property
// +build property

package reactive

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestStoreProperties checks notification counts against a model.
func TestStoreProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	keys := []string{"a", "b", "c"}
	writes := gen.SliceOf(gen.IntRange(0, 8))

	properties.Property("an effect runs once per changing write to a key it reads", prop.ForAll(
		func(ops []int) bool {
			s := Wrap(map[string]any{"a": 0, "b": 0, "c": 0})
			e := s.Track(func(sc *Scope) error {
				s.Get(sc, "a")
				s.Get(sc, "b")
				return nil
			})

			model := map[string]int{"a": 0, "b": 0, "c": 0}
			expected := 1
			for _, op := range ops {
				key := keys[op%3]
				value := op / 3
				if model[key] != value {
					model[key] = value
					if key != "c" {
						expected++
					}
				}
				s.Set(key, value)
			}
			return e.Runs() == expected
		},
		writes,
	))

	properties.Property("snapshot reflects the last write per key", prop.ForAll(
		func(ops []int) bool {
			s := Wrap(nil, WithPolicy(Resubscribe))
			model := map[string]any{}
			for _, op := range ops {
				key := keys[op%3]
				s.Set(key, op)
				model[key] = op
			}
			snap := s.Snapshot()
			if len(snap) != len(model) {
				return false
			}
			for k, v := range model {
				if snap[k] != v {
					return false
				}
			}
			return true
		},
		writes,
	))

	properties.Property("subscribers never duplicate", prop.ForAll(
		func(reads int) bool {
			s := Wrap(map[string]any{"x": 0})
			s.Track(func(sc *Scope) error {
				for i := 0; i < reads; i++ {
					s.Get(sc, "x")
				}
				return nil
			})
			s.Set("x", 1)
			want := 0
			if reads > 0 {
				want = 1
			}
			return s.Root().Signal("x").Dependency().Subscribers() == want
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
