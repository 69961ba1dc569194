package subscription

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
)

// Translate rewrites a patch observed on the object at pointer so its path
// is relative to the model root. All other fields pass through.
func Translate(pointer string, p observe.Patch) observe.Patch {
	p.Path = pointer + p.Path
	return p
}

type record struct {
	target observe.Observable
	handle observe.Handle
	refs   int
}

// Manager tracks one connection's subscriptions.
//
// Overlapping pointers such as /a and /a/b are independent subscriptions:
// a change below /a/b is delivered once for each.
//
// Manager is not synchronized. Its methods are called inside model turns,
// like every other access to the model.
type Manager struct {
	root    any
	batcher *Batcher
	records map[string]*record
	logger  *slog.Logger
}

// NewManager creates a manager resolving pointers against root and
// delivering translated patches to batcher.
func NewManager(root any, batcher *Batcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		root:    root,
		batcher: batcher,
		records: make(map[string]*record),
		logger:  logger,
	}
}

// Subscribe starts observing the object at pointer, or adds a reference to
// an existing subscription. A new subscription first delivers a replace
// patch carrying the object's current value.
func (m *Manager) Subscribe(pointer string) error {
	if pointer == "" {
		return protocol.ErrInvalidParams("Cannot subscribe to the root model object")
	}
	if rec, ok := m.records[pointer]; ok {
		rec.refs++
		return nil
	}

	v, err := observe.Resolve(m.root, pointer)
	target, ok := v.(observe.Observable)
	if err != nil || !ok {
		return protocol.ErrApplication(fmt.Sprintf("Can't subscribe to '%s', value is null or not an object", pointer))
	}

	m.batcher.Enqueue(Translate(pointer, observe.Patch{
		Op:    observe.OpReplace,
		Path:  "",
		Value: observe.Export(target),
	}))
	handle := target.Subscribe(func(p observe.Patch) {
		m.batcher.Enqueue(Translate(pointer, p))
	})
	m.records[pointer] = &record{target: target, handle: handle, refs: 1}
	m.logger.Debug("subscribed", "pointer", pointer)
	return nil
}

// Unsubscribe drops one reference to pointer and stops observing when none
// remain. Unknown pointers are ignored.
func (m *Manager) Unsubscribe(pointer string) error {
	rec, ok := m.records[pointer]
	if !ok {
		return nil
	}
	rec.refs--
	if rec.refs <= 0 {
		rec.target.Unsubscribe(rec.handle)
		delete(m.records, pointer)
		m.logger.Debug("unsubscribed", "pointer", pointer)
	}
	return nil
}

// UnsubscribeAll stops every subscription regardless of reference count.
func (m *Manager) UnsubscribeAll() {
	for pointer, rec := range m.records {
		rec.target.Unsubscribe(rec.handle)
		delete(m.records, pointer)
	}
}

// Refs returns the reference count of pointer, zero if not subscribed.
func (m *Manager) Refs(pointer string) int {
	if rec, ok := m.records[pointer]; ok {
		return rec.refs
	}
	return 0
}

// Pointers returns the subscribed pointers in sorted order.
func (m *Manager) Pointers() []string {
	pointers := make([]string, 0, len(m.records))
	for p := range m.records {
		pointers = append(pointers, p)
	}
	sort.Strings(pointers)
	return pointers
}
