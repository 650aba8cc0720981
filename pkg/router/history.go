package router

import (
	"net/url"
	"strings"
)

// History is the navigation stack the router reads the current location
// from and pushes onto.
type History interface {
	// Location returns the current path, for example "/todos".
	Location() string
	// Address returns the full current address.
	Address() string
	Push(path string)
	Back() bool
	Forward() bool
	// OnPop registers fn for back/forward moves and returns a function that
	// removes it.
	OnPop(fn func(path string)) (remove func())
}

// MemoryHistory is an in-memory History with back/forward support.
type MemoryHistory struct {
	base      string
	entries   []string
	index     int
	listeners map[int]func(string)
	nextID    int
}

var _ History = (*MemoryHistory)(nil)

// NewMemoryHistory creates a history positioned at initial. base prefixes
// Address, for example "http://localhost:8080".
func NewMemoryHistory(base, initial string) *MemoryHistory {
	return &MemoryHistory{
		base:      strings.TrimSuffix(base, "/"),
		entries:   []string{CleanPath(initial)},
		listeners: make(map[int]func(string)),
	}
}

// CleanPath strips query and fragment and guarantees a leading slash.
func CleanPath(p string) string {
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Location implements History.
func (h *MemoryHistory) Location() string { return h.entries[h.index] }

// Address implements History.
func (h *MemoryHistory) Address() string { return h.base + h.Location() }

// Push implements History. Forward entries are discarded.
func (h *MemoryHistory) Push(path string) {
	h.entries = append(h.entries[:h.index+1], CleanPath(path))
	h.index++
}

// Back implements History.
func (h *MemoryHistory) Back() bool {
	if h.index == 0 {
		return false
	}
	h.index--
	h.pop()
	return true
}

// Forward implements History.
func (h *MemoryHistory) Forward() bool {
	if h.index == len(h.entries)-1 {
		return false
	}
	h.index++
	h.pop()
	return true
}

// Len returns the number of entries on the stack.
func (h *MemoryHistory) Len() int { return len(h.entries) }

func (h *MemoryHistory) pop() {
	loc := h.Location()
	for id := 0; id < h.nextID; id++ {
		if fn, ok := h.listeners[id]; ok {
			fn(loc)
		}
	}
}

// OnPop implements History.
func (h *MemoryHistory) OnPop(fn func(path string)) func() {
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() { delete(h.listeners, id) }
}
