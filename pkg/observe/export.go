package observe

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
)

// From converts v into a value that can be stored in a container.
// Maps with string keys become *Object (keys inserted in sorted order),
// slices and arrays other than []byte become *Array. Containers and
// leaves are returned unchanged.
func From(v any) any {
	switch v := v.(type) {
	case nil, *Object, *Array, bool, string, float64, int, int64, json.Number, []byte:
		return v
	case map[string]any:
		o := NewObject()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			o.Set(k, v[k])
		}
		return o
	case []any:
		return NewArray(v...)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return From(m)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return v
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return NewArray(items...)
	}
	return v
}

// Export returns a detached deep copy of v built from map[string]any and
// []any. Private keys are omitted. A container reached again while it is
// being exported is replaced by nil.
func Export(v any) any {
	return export(v, nil)
}

func export(v any, path []Observable) any {
	c, ok := v.(Observable)
	if !ok {
		return v
	}
	for _, seen := range path {
		if seen == c {
			return nil
		}
	}
	path = append(path[:len(path):len(path)], c)

	switch c := c.(type) {
	case *Object:
		m := make(map[string]any, len(c.values))
		for _, k := range c.keys {
			if !IsPrivate(k) {
				m[k] = export(c.values[k], path)
			}
		}
		return m
	case *Array:
		s := make([]any, len(c.items))
		for i, item := range c.items {
			s[i] = export(item, path)
		}
		return s
	}
	return nil
}

// writeJSON encodes v keeping object key order. Cycles encode as null.
func writeJSON(buf *bytes.Buffer, v any, path []Observable) error {
	c, ok := v.(Observable)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
	for _, seen := range path {
		if seen == c {
			buf.WriteString("null")
			return nil
		}
	}
	path = append(path[:len(path):len(path)], c)

	switch c := c.(type) {
	case *Object:
		buf.WriteByte('{')
		first := true
		for _, k := range c.keys {
			if IsPrivate(k) {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSON(buf, c.values[k], path); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case *Array:
		buf.WriteByte('[')
		for i, item := range c.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item, path); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}

// identical compares two stored values. Containers compare by identity,
// incomparable leaves are never identical.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}
