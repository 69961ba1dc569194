package observe

import (
	"bytes"
	"fmt"
	"strconv"
)

// Array is an observable ordered container.
type Array struct {
	node
	items []any
}

// NewArray returns an Array holding items, each converted with From.
func NewArray(items ...any) *Array {
	a := &Array{}
	a.self = a
	a.keysOf = a.indicesHolding
	for _, v := range items {
		v = From(v)
		a.items = append(a.items, v)
		adopt(a, v)
	}
	return a
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.items) }

// At returns the element at index i. It panics if i is out of range.
func (a *Array) At(i int) any { return a.items[i] }

// Items returns a shallow copy of the elements.
func (a *Array) Items() []any {
	return append([]any(nil), a.items...)
}

// Set overwrites element i and emits a replace patch. Storing the value
// already held emits nothing.
// It panics if i is out of range.
func (a *Array) Set(i int, v any) {
	if i < 0 || i >= len(a.items) {
		panic(fmt.Sprintf("observe: index %d out of range [0:%d]", i, len(a.items)))
	}
	v = From(v)
	if identical(a.items[i], v) {
		return
	}
	orphan(a, a.items[i])
	a.items[i] = v
	adopt(a, v)
	if !a.observed(nil) {
		return
	}
	a.emit(Patch{Op: OpReplace, Path: "/" + strconv.Itoa(i), Value: Export(v)})
}

// Push appends vs and returns the new length.
func (a *Array) Push(vs ...any) int {
	a.Splice(len(a.items), 0, vs...)
	return len(a.items)
}

// Splice removes up to remove elements starting at start, inserts add in
// their place and returns the removed elements. A negative start counts back
// from the end. start and remove are clamped to the array bounds.
// A splice that changes nothing emits no patch.
func (a *Array) Splice(start, remove int, add ...any) []any {
	n := len(a.items)
	switch {
	case start < 0:
		start = max(n+start, 0)
	case start > n:
		start = n
	}
	remove = min(max(remove, 0), n-start)
	if remove == 0 && len(add) == 0 {
		return nil
	}

	removed := append([]any(nil), a.items[start:start+remove]...)
	added := make([]any, len(add))
	for i, v := range add {
		added[i] = From(v)
	}

	items := make([]any, 0, n-remove+len(added))
	items = append(items, a.items[:start]...)
	items = append(items, added...)
	items = append(items, a.items[start+remove:]...)
	a.items = items

	for _, v := range removed {
		orphan(a, v)
	}
	for _, v := range added {
		adopt(a, v)
	}

	if a.observed(nil) {
		values := make([]any, len(added))
		for i, v := range added {
			values[i] = Export(v)
		}
		a.emit(Patch{Op: OpSplice, Path: "/" + strconv.Itoa(start), Remove: remove, Add: values})
	}
	return removed
}

// Remove deletes element i and returns it.
func (a *Array) Remove(i int) any {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.Splice(i, 1)[0]
}

// Pop removes and returns the last element.
func (a *Array) Pop() (any, bool) {
	if len(a.items) == 0 {
		return nil, false
	}
	return a.Splice(len(a.items)-1, 1)[0], true
}

// IndexOf returns the index of the first element equal to v, or -1.
// Containers compare by identity.
func (a *Array) IndexOf(v any) int {
	for i, item := range a.items {
		if identical(item, v) {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes the elements in order.
func (a *Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, a, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Array) indicesHolding(child Observable) []string {
	var idx []string
	for i, v := range a.items {
		if sameContainer(v, child) {
			idx = append(idx, strconv.Itoa(i))
		}
	}
	return idx
}
