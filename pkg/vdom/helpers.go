package vdom

import "github.com/conneroisu/mist/internal/errors"

// Sentinels for errors.Is checks on reconciler and construction failures.
var (
	ErrMountTargetNotFound   = errors.ErrMountTargetNotFound
	ErrInvalidNodeDescriptor = errors.ErrInvalidNodeDescriptor
	ErrInvalidEventBinding   = errors.ErrInvalidEventBinding
)

// For builds one node per item.
func For[T any](items []T, fn func(item T, index int) *Node) []*Node {
	out := make([]*Node, 0, len(items))
	for i, item := range items {
		out = append(out, fn(item, i))
	}
	return out
}

// If returns node when cond holds and an empty text node otherwise, so the
// child position stays occupied and positional diffing stays aligned.
func If(cond bool, node *Node) *Node {
	if cond {
		return node
	}
	return Text("")
}

// IfElse returns one of two nodes.
func IfElse(cond bool, node, fallback *Node) *Node {
	if cond {
		return node
	}
	return fallback
}
