package pushtest

import (
	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
)

// Msg is a JSON object under construction.
type Msg map[string]any

func params(p []any) []any {
	if p == nil {
		return []any{}
	}
	return p
}

// Req builds a request envelope.
func Req(id any, method string, p ...any) Msg {
	return Msg{"jsonrpc": protocol.Version, "id": id, "method": method, "params": params(p)}
}

// Note builds a notification envelope, a request without an id.
func Note(method string, p ...any) Msg {
	return Msg{"jsonrpc": protocol.Version, "method": method, "params": params(p)}
}

// Res builds a success response.
func Res(id any, result any) Msg {
	return Msg{"jsonrpc": protocol.Version, "id": id, "result": result}
}

// Err builds an error response. data is omitted when nil.
func Err(id any, code protocol.Code, message string, data any) Msg {
	e := Msg{"code": code, "message": message}
	if data != nil {
		e["data"] = data
	}
	return Msg{"jsonrpc": protocol.Version, "id": id, "error": e}
}

// AppErr builds an application error response.
func AppErr(id any, data any) Msg {
	return Err(id, protocol.CodeApplication, protocol.MsgApplication, data)
}

// Pub builds a PUB notification carrying one batch.
func Pub(patches ...observe.Patch) Msg {
	if patches == nil {
		patches = []observe.Patch{}
	}
	return Msg{"jsonrpc": protocol.Version, "method": protocol.MethodPublish, "params": []any{patches}}
}

// Add builds an add patch.
func Add(path string, value any) observe.Patch {
	return observe.Patch{Op: observe.OpAdd, Path: path, Value: value}
}

// Replace builds a replace patch.
func Replace(path string, value any) observe.Patch {
	return observe.Patch{Op: observe.OpReplace, Path: path, Value: value}
}

// Remove builds a remove patch.
func Remove(path string) observe.Patch {
	return observe.Patch{Op: observe.OpRemove, Path: path}
}

// Splice builds a splice patch.
func Splice(path string, remove int, add ...any) observe.Patch {
	if add == nil {
		add = []any{}
	}
	return observe.Patch{Op: observe.OpSplice, Path: path, Remove: remove, Add: add}
}
