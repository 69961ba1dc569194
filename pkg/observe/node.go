package observe

// Handler receives patches from an observed container.
// Handlers run synchronously inside the mutating call.
type Handler func(Patch)

// Handle identifies one subscription on one container.
type Handle uint64

// Observable is implemented by *Object and *Array.
type Observable interface {
	// Subscribe registers fn and returns a handle for Unsubscribe.
	Subscribe(fn Handler) Handle
	// Unsubscribe removes the handler registered under h.
	// It reports whether a handler was removed.
	Unsubscribe(h Handle) bool

	observable() *node
}

type handlerEntry struct {
	id Handle
	fn Handler
}

type parentLink struct {
	parent Observable
	refs   int
}

// node carries the subscription and parent bookkeeping shared by containers.
type node struct {
	self     Observable
	handlers []handlerEntry
	lastID   Handle
	parents  []parentLink
	keysOf   func(child Observable) []string
}

func (n *node) observable() *node { return n }

// Subscribe registers fn and returns a handle for Unsubscribe.
func (n *node) Subscribe(fn Handler) Handle {
	n.lastID++
	n.handlers = append(n.handlers, handlerEntry{id: n.lastID, fn: fn})
	return n.lastID
}

// Unsubscribe removes the handler registered under h.
func (n *node) Unsubscribe(h Handle) bool {
	for i, e := range n.handlers {
		if e.id == h {
			n.handlers = append(n.handlers[:i:i], n.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Subscribers returns the number of handlers registered directly on the container.
func (n *node) Subscribers() int {
	return len(n.handlers)
}

func (n *node) subscribed(h Handle) bool {
	for _, e := range n.handlers {
		if e.id == h {
			return true
		}
	}
	return false
}

func (n *node) link(parent Observable) {
	for i := range n.parents {
		if n.parents[i].parent == parent {
			n.parents[i].refs++
			return
		}
	}
	n.parents = append(n.parents, parentLink{parent: parent, refs: 1})
}

func (n *node) unlink(parent Observable) {
	for i := range n.parents {
		if n.parents[i].parent != parent {
			continue
		}
		n.parents[i].refs--
		if n.parents[i].refs <= 0 {
			n.parents = append(n.parents[:i:i], n.parents[i+1:]...)
		}
		return
	}
}

func (n *node) emit(p Patch) {
	n.propagate(p, nil)
}

// observed reports whether a patch emitted here would reach any handler.
func (n *node) observed(path []*node) bool {
	if len(n.handlers) > 0 {
		return true
	}
	for _, seen := range path {
		if seen == n {
			return false
		}
	}
	path = append(path[:len(path):len(path)], n)
	for _, l := range n.parents {
		if l.parent.observable().observed(path) {
			return true
		}
	}
	return false
}

// propagate delivers p to the container's handlers and then to every parent
// under each key the container is stored at. Containers already on the
// delivery path are skipped so cyclic graphs terminate.
func (n *node) propagate(p Patch, path []*node) {
	for _, seen := range path {
		if seen == n {
			return
		}
	}
	path = append(path[:len(path):len(path)], n)

	handlers := append([]handlerEntry(nil), n.handlers...)
	for _, e := range handlers {
		// handlers removed by an earlier handler in this delivery are skipped
		if n.subscribed(e.id) {
			e.fn(p)
		}
	}

	parents := append([]parentLink(nil), n.parents...)
	for _, l := range parents {
		pn := l.parent.observable()
		for _, key := range pn.keysOf(n.self) {
			pn.propagate(p.prefixed(key), path)
		}
	}
}

// adopt links child under parent if child is a container.
func adopt(parent Observable, child any) {
	if c, ok := child.(Observable); ok {
		c.observable().link(parent)
	}
}

// orphan removes one parent link from child if child is a container.
func orphan(parent Observable, child any) {
	if c, ok := child.(Observable); ok {
		c.observable().unlink(parent)
	}
}

// sameContainer reports whether v holds exactly the container c.
func sameContainer(v any, c Observable) bool {
	o, ok := v.(Observable)
	return ok && o == c
}
