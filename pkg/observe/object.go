package observe

import (
	"bytes"
	"strings"
)

// Object is an observable string-keyed container that remembers key
// insertion order.
type Object struct {
	node
	keys    []string
	values  map[string]any
	tracker Handle
}

// NewObject returns an empty Object.
func NewObject() *Object {
	o := &Object{values: make(map[string]any)}
	o.self = o
	o.keysOf = o.keysHolding
	return o
}

// IsPrivate reports whether key names a private property.
func IsPrivate(key string) bool {
	return strings.HasPrefix(key, "_")
}

// Get returns the value stored under key, or nil.
func (o *Object) Get(key string) any {
	return o.values[key]
}

// Lookup returns the value stored under key and whether the key exists.
func (o *Object) Lookup(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key exists.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Object returns the *Object stored under key, or nil.
func (o *Object) Object(key string) *Object {
	c, _ := o.values[key].(*Object)
	return c
}

// Array returns the *Array stored under key, or nil.
func (o *Object) Array(key string) *Array {
	c, _ := o.values[key].(*Array)
	return c
}

// Set stores v under key. Maps and slices are converted with From.
// A new public key emits an add patch, an existing one a replace patch
// unless it already holds v.
// Private keys store v unconverted and emit nothing.
func (o *Object) Set(key string, v any) {
	if IsPrivate(key) {
		if _, ok := o.values[key]; !ok {
			o.keys = append(o.keys, key)
		}
		o.values[key] = v
		return
	}

	v = From(v)
	old, exists := o.values[key]
	if exists && identical(old, v) {
		return
	}
	if exists {
		orphan(o, old)
	} else {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
	adopt(o, v)

	if !o.observed(nil) {
		return
	}
	op := OpAdd
	if exists {
		op = OpReplace
	}
	o.emit(Patch{Op: op, Path: "/" + Escape(key), Value: Export(v)})
}

// Delete removes key and reports whether it existed.
// Deleting a public key emits a remove patch.
func (o *Object) Delete(key string) bool {
	old, ok := o.values[key]
	if !ok {
		return false
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
	if IsPrivate(key) {
		return true
	}
	orphan(o, old)
	if !o.observed(nil) {
		return true
	}
	o.emit(Patch{Op: OpRemove, Path: "/" + Escape(key)})
	return true
}

// Keys returns the public keys in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		if !IsPrivate(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of public keys.
func (o *Object) Len() int {
	n := 0
	for _, k := range o.keys {
		if !IsPrivate(k) {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the public keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, o, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Object) keysHolding(child Observable) []string {
	var keys []string
	for _, k := range o.keys {
		if !IsPrivate(k) && sameContainer(o.values[k], child) {
			keys = append(keys, k)
		}
	}
	return keys
}
