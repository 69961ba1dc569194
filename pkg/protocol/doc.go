// Package protocol implements the JSON-RPC 2.0 wire format spoken by
// pushmodel endpoints.
//
// Both transports carry the same messages:
//
//	request       {"jsonrpc":"2.0","id":1,"method":"addItem","params":["x"]}
//	notification  {"jsonrpc":"2.0","method":"onConnect"}
//	result        {"jsonrpc":"2.0","id":1,"result":null}
//	error         {"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}
//	publish       {"jsonrpc":"2.0","method":"PUB","params":[[patch, ...]]}
//
// A message is either one envelope or an array of envelopes. Only envelopes
// carrying an "id" member are answered; an explicit null id counts.
//
// # Error Codes
//
// The reserved codes are the ones defined by go.lsp.dev/jsonrpc2:
//
//   - CodeParseError (-32700): message is not valid JSON
//   - CodeInvalidRequest (-32600): envelope is not JSON-RPC 2.0
//   - CodeMethodNotFound (-32601): no handler registered for the method
//   - CodeInvalidParams (-32602): params do not fit the handler
//   - CodeInternalError (-32603): the handler failed
//
// Application failures, such as subscribing to a missing object, use
// CodeApplication (0).
package protocol
