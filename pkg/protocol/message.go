package protocol

import (
	"bytes"
	"encoding/json"

	"go.lsp.dev/jsonrpc2"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
)

// Version is the protocol tag every envelope must carry.
const Version = jsonrpc2.Version

// MethodPublish is the method of server-pushed patch notifications.
const MethodPublish = "PUB"

// nullID is the id of responses to messages that could not be parsed.
var nullID = json.RawMessage("null")

// Request is one inbound call envelope.
type Request struct {
	// JSONRPC is the protocol tag as sent, empty if absent or not a string.
	JSONRPC string
	// ID is the raw id. It is nil when the envelope carries no id member.
	ID json.RawMessage
	// Method is empty if absent or not a string.
	Method string
	// Params is the raw params member, nil if absent.
	Params json.RawMessage
}

// HasID reports whether the envelope expects a response.
func (r *Request) HasID() bool { return r.ID != nil }

// MarshalJSON encodes the request, omitting absent members.
func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id,omitempty"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}{r.JSONRPC, r.ID, r.Method, r.Params})
}

// NewRequest builds a request with the given id. A nil id makes it a
// notification. params are encoded as the positional argument list.
func NewRequest(id any, method string, params ...any) (*Request, error) {
	r := &Request{JSONRPC: Version, Method: method}
	if id != nil {
		raw, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		r.ID = raw
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		r.Params = raw
	}
	return r, nil
}

// Response is one outbound reply envelope. Exactly one of Result and Error
// is encoded.
type Response struct {
	ID     json.RawMessage
	Result any
	Error  *Error
}

// MarshalJSON encodes the response. A nil Result is encoded as null.
func (r *Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if id == nil {
		id = nullID
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *Error          `json:"error"`
		}{Version, id, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{Version, id, r.Result})
}

// UnmarshalJSON decodes a response. Result is left as json.RawMessage.
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     json.RawMessage `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Response{ID: raw.ID, Error: raw.Error}
	if raw.Result != nil {
		r.Result = raw.Result
	}
	return nil
}

// Notification is a server-initiated message without an id.
type Notification struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// MarshalJSON adds the protocol tag.
func (n *Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params"`
	}{Version, n.Method, n.Params})
}

// NewPublish wraps a batch of patches in a PUB notification.
func NewPublish(patches []observe.Patch) *Notification {
	if patches == nil {
		patches = []observe.Patch{}
	}
	return &Notification{Method: MethodPublish, Params: []any{patches}}
}

// ParseResult is the outcome of splitting an inbound message.
type ParseResult struct {
	// Requests holds the envelopes in message order.
	Requests []*Request
	// Batch reports whether the message was an array.
	Batch bool
}

// Expected returns how many envelopes carry an id.
func (p *ParseResult) Expected() int {
	n := 0
	for _, r := range p.Requests {
		if r.HasID() {
			n++
		}
	}
	return n
}

// Parse splits data into request envelopes. It returns ErrParse when data
// is not valid JSON. Elements that are not JSON objects become envelopes
// without id, method or version, so they fail validation silently.
func Parse(data []byte) (*ParseResult, *Error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, ErrParse()
	}

	if len(data) > 0 && data[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, ErrParse()
		}
		res := &ParseResult{Batch: true, Requests: make([]*Request, 0, len(elems))}
		for _, e := range elems {
			res.Requests = append(res.Requests, parseEnvelope(e))
		}
		return res, nil
	}
	return &ParseResult{Requests: []*Request{parseEnvelope(data)}}, nil
}

func parseEnvelope(data json.RawMessage) *Request {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return &Request{}
	}
	r := &Request{}
	if id, ok := members["id"]; ok {
		r.ID = id
	}
	_ = json.Unmarshal(members["jsonrpc"], &r.JSONRPC)
	_ = json.Unmarshal(members["method"], &r.Method)
	if p, ok := members["params"]; ok {
		r.Params = p
	}
	return r
}

// Validate checks the protocol tag.
func (r *Request) Validate() *Error {
	if r.JSONRPC != Version {
		return ErrInvalidRequest("Not JSON-RPC version 2.0")
	}
	return nil
}

// EncodeResponses encodes accumulated responses as one message: a bare
// object for a single response, an array otherwise.
func EncodeResponses(responses []*Response) ([]byte, error) {
	if len(responses) == 1 {
		return json.Marshal(responses[0])
	}
	if responses == nil {
		responses = []*Response{}
	}
	return json.Marshal(responses)
}
