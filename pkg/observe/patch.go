package observe

import (
	"encoding/json"
	"strconv"
)

// Patch operations.
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpSplice  = "splice"
)

// Patch describes one mutation of an observed container.
//
// Value is set for add and replace. Remove and Add are set for splice, where
// the last path token is the index at which Remove elements were deleted and
// Add inserted.
type Patch struct {
	Op     string
	Path   string
	Value  any
	Remove int
	Add    []any
}

// MarshalJSON encodes only the fields relevant to the patch's op.
// A nil Value is encoded as null for add and replace.
func (p Patch) MarshalJSON() ([]byte, error) {
	switch p.Op {
	case OpRemove:
		return json.Marshal(struct {
			Op   string `json:"op"`
			Path string `json:"path"`
		}{p.Op, p.Path})
	case OpSplice:
		add := p.Add
		if add == nil {
			add = []any{}
		}
		return json.Marshal(struct {
			Op     string `json:"op"`
			Path   string `json:"path"`
			Remove int    `json:"remove"`
			Add    []any  `json:"add"`
		}{p.Op, p.Path, p.Remove, add})
	default:
		return json.Marshal(struct {
			Op    string `json:"op"`
			Path  string `json:"path"`
			Value any    `json:"value"`
		}{p.Op, p.Path, p.Value})
	}
}

// UnmarshalJSON decodes a patch produced by MarshalJSON.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op     string `json:"op"`
		Path   string `json:"path"`
		Value  any    `json:"value"`
		Remove int    `json:"remove"`
		Add    []any  `json:"add"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Patch{Op: raw.Op, Path: raw.Path, Value: raw.Value, Remove: raw.Remove, Add: raw.Add}
	return nil
}

// String returns a compact human-readable form used in logs.
func (p Patch) String() string {
	switch p.Op {
	case OpSplice:
		return p.Op + " " + p.Path + " -" + strconv.Itoa(p.Remove) + " +" + strconv.Itoa(len(p.Add))
	default:
		return p.Op + " " + p.Path
	}
}

// prefixed returns a copy of p with token prepended to its path.
func (p Patch) prefixed(token string) Patch {
	p.Path = "/" + Escape(token) + p.Path
	return p
}
