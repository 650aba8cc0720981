package vdom

// Handle is an opaque reference to a live host-tree node. Handles must be
// comparable; the reconciler compares them to nil and stores them on nodes.
type Handle interface{}

// Document is the host-tree capability the reconciler drives. Concrete
// bindings (an in-memory HTML tree, a patch recorder streaming to a browser)
// implement it; the diff algorithm never touches a host node any other way.
type Document interface {
	// CreateElement returns a new detached element handle.
	CreateElement(tag string) Handle
	// CreateText returns a new detached text handle.
	CreateText(text string) Handle

	SetAttribute(h Handle, name, value string)
	RemoveAttribute(h Handle, name string)
	// AddEventListener binds fn to the named event ("click", "input", ...).
	AddEventListener(h Handle, event string, fn EventHandler)

	AppendChild(parent, child Handle)
	RemoveChild(parent, child Handle)
	// ReplaceChild puts newChild where oldChild is and detaches oldChild.
	ReplaceChild(parent, newChild, oldChild Handle)

	// Parent returns the parent of h, or nil when h is detached.
	Parent(h Handle) Handle
	// LastChild returns the last child of h, or nil.
	LastChild(h Handle) Handle
	// Query returns the first element matching selector.
	Query(selector string) (Handle, bool)

	SetTitle(title string)
}
