package websocket

import (
	"github.com/conneroisu/mist/internal/host/patch"
)

// MessageType names a websocket message.
type MessageType string

const (
	// Server to browser.
	MessageReset MessageType = "reset"
	MessagePatch MessageType = "patch"
	MessageError MessageType = "error"

	// Browser to server.
	MessageEvent    MessageType = "event"
	MessageNavigate MessageType = "navigate"
)

// Message is the JSON envelope exchanged with the browser. A reset carries
// the recorded tree under the mount target, a patch the operations recorded
// by one render.
type Message struct {
	Type   MessageType       `json:"type"`
	Kind   string            `json:"kind,omitempty"`
	Tree   *patch.Tree       `json:"tree,omitempty"`
	Ops    []patch.Op        `json:"ops,omitempty"`
	Title  string            `json:"title,omitempty"`
	Path   string            `json:"path,omitempty"`
	ID     int               `json:"id,omitempty"`
	Event  string            `json:"event,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
	Error  string            `json:"error,omitempty"`
	Errors string            `json:"errors,omitempty"`
}

// OriginValidator decides whether a browser origin may connect.
type OriginValidator interface {
	Allowed(origin, host string) bool
	Patterns() []string
}
