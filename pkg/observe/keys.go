package observe

// KeysProperty is the property TrackKeys maintains.
const KeysProperty = "keys"

// TrackKeys stores an Array under o["keys"] listing o's other public keys in
// insertion order and keeps it current as keys are added and removed.
// Patches for the keys array are delivered before the add or remove patch
// that caused them. Calling TrackKeys on a tracked object returns the
// existing array.
func TrackKeys(o *Object) *Array {
	if o.tracker != 0 {
		return o.Array(KeysProperty)
	}

	keys := o.Array(KeysProperty)
	if keys == nil {
		var names []any
		for _, k := range o.Keys() {
			if k != KeysProperty {
				names = append(names, k)
			}
		}
		keys = NewArray(names...)
		o.Set(KeysProperty, keys)
	}

	o.tracker = o.Subscribe(func(p Patch) {
		tokens, err := Parse(p.Path)
		if err != nil || len(tokens) != 1 || tokens[0] == KeysProperty {
			return
		}
		switch p.Op {
		case OpAdd:
			if keys.IndexOf(tokens[0]) < 0 {
				keys.Push(tokens[0])
			}
		case OpRemove:
			if i := keys.IndexOf(tokens[0]); i >= 0 {
				keys.Remove(i)
			}
		}
	})
	return keys
}

// UntrackKeys stops maintaining o["keys"]. The array is left in place.
func UntrackKeys(o *Object) {
	if o.tracker == 0 {
		return
	}
	o.Unsubscribe(o.tracker)
	o.tracker = 0
}
