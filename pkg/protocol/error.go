package protocol

import (
	"fmt"

	"go.lsp.dev/jsonrpc2"
)

// Code is a JSON-RPC error code.
type Code = jsonrpc2.Code

// Reserved and application error codes.
const (
	CodeParseError     Code = jsonrpc2.ParseError
	CodeInvalidRequest Code = jsonrpc2.InvalidRequest
	CodeMethodNotFound Code = jsonrpc2.MethodNotFound
	CodeInvalidParams  Code = jsonrpc2.InvalidParams
	CodeInternalError  Code = jsonrpc2.InternalError
	CodeApplication    Code = 0
)

// Standard error messages.
const (
	MsgParseError     = "Parse error"
	MsgInvalidRequest = "Invalid request"
	MsgMethodNotFound = "Method not found"
	MsgInvalidParams  = "Invalid params"
	MsgInternalError  = "Internal error"
	MsgApplication    = "Application error"
)

// Error is the error member of a response. It implements error so handlers
// can return it directly.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("jsonrpc %d: %s: %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message)
}

// NewError creates an error with the given code, message and optional data.
func NewError(code Code, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// ErrParse returns the error sent for a message that is not valid JSON.
func ErrParse() *Error {
	return &Error{Code: CodeParseError, Message: MsgParseError}
}

// ErrInvalidRequest returns an invalid request error with data describing why.
func ErrInvalidRequest(data any) *Error {
	return &Error{Code: CodeInvalidRequest, Message: MsgInvalidRequest, Data: data}
}

// ErrMethodNotFound returns the error sent for an unknown method.
func ErrMethodNotFound() *Error {
	return &Error{Code: CodeMethodNotFound, Message: MsgMethodNotFound}
}

// ErrInvalidParams returns an invalid params error with data describing why.
func ErrInvalidParams(data any) *Error {
	return &Error{Code: CodeInvalidParams, Message: MsgInvalidParams, Data: data}
}

// ErrInternal returns the generic error sent when a handler fails.
func ErrInternal() *Error {
	return &Error{Code: CodeInternalError, Message: MsgInternalError}
}

// ErrApplication returns an application error with data describing why.
func ErrApplication(data any) *Error {
	return &Error{Code: CodeApplication, Message: MsgApplication, Data: data}
}
