// Package observe provides observable JSON-like containers that report every
// mutation as a structured patch.
//
// A model tree is built from *Object and *Array containers holding plain
// values (nil, bool, numbers, strings) or other containers. Any container can
// be subscribed to; its handlers receive a Patch for each mutation of the
// container itself or of any observed descendant. Patch paths are JSON
// Pointers relative to the subscribed container.
//
// # Patches
//
//	{op: "add",     path, value}   new object key
//	{op: "replace", path, value}   existing key or array element overwritten
//	{op: "remove",  path}          object key deleted
//	{op: "splice",  path, remove, add}  array elements removed/inserted at path's index
//
// Patch values are detached copies (see Export), so a patch never aliases live
// model state and can be serialized from any goroutine.
//
// # Private properties
//
// Object keys that start with an underscore are private: they may hold any
// value but are never observed, never produce patches and are omitted from
// exported and serialized output.
//
// # Thread Safety
//
// Containers are not synchronized. All reads and writes of one tree must be
// serialized by the caller; pkg/model does this with its turn lock.
//
// # Example
//
//	items := observe.NewArray()
//	h := items.Subscribe(func(p observe.Patch) {
//	    fmt.Println(p.Op, p.Path)
//	})
//	items.Push(map[string]any{"text": "milk"}) // splice /0
//	items.At(0).(*observe.Object).Set("done", true) // add /0/done
//	items.Unsubscribe(h)
package observe
