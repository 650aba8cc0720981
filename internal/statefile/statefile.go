// Package statefile loads application state from YAML documents and applies
// it to a reactive store.
package statefile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/pkg/reactive"
)

// Decode parses a YAML mapping into plain Go values: nested mappings become
// map[string]any, sequences []any and integers int. An empty document
// yields an empty map.
func Decode(r io.Reader) (map[string]any, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return map[string]any{}, nil
		}
		return nil, errors.NewStateError(errors.ErrCodeStateFile, "decoding state", err)
	}

	var state map[string]any
	if err := doc.Decode(&state); err != nil {
		return nil, errors.NewStateError(errors.ErrCodeStateFile, "state must be a mapping", err)
	}
	if state == nil {
		state = map[string]any{}
	}
	return normalize(state).(map[string]any), nil
}

// normalize converts the map types yaml produces for nested documents so the
// store wraps them as reactive objects.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = normalize(val)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i, val := range x {
			x[i] = normalize(val)
		}
		return x
	default:
		return v
	}
}

// Load reads and decodes the file at path.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStateFile, "reading state file", err).
			WithContext("path", path)
	}
	state, err := Decode(bytes.NewReader(data))
	if err != nil {
		var me *errors.MistError
		if errors.As(err, &me) {
			me.WithContext("path", path)
		}
		return nil, err
	}
	return state, nil
}

// Apply loads path and merges it into store. Only keys whose values changed
// notify their subscribers.
func Apply(store *reactive.Store, path string) error {
	state, err := Load(path)
	if err != nil {
		return err
	}
	store.Apply(state)
	return nil
}

// Encode writes state as YAML.
func Encode(w io.Writer, state map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(state); err != nil {
		return errors.NewIOError(errors.ErrCodeStateFile, "encoding state", err)
	}
	return enc.Close()
}

// Save writes a snapshot of store to path.
func Save(store *reactive.Store, path string) error {
	var buf bytes.Buffer
	if err := Encode(&buf, store.Snapshot()); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeStateFile, "writing state file", err).
			WithContext("path", path)
	}
	return nil
}
