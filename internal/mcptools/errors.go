// Package mcptools wires the memory manager (C6), rules engine (C7), and
// code indexer (C8) of a per-project context (C9) to the Model Context
// Protocol: one typed tool per operation, dispatched over stdio to an AI
// coding assistant.
package mcptools

import (
	stderrors "errors"
	"fmt"

	memerrors "github.com/memctx/memctx/internal/errors"
)

// Custom MCP error codes, alongside the standard JSON-RPC codes below.
const (
	errCodeNotFound               = -32001
	errCodeDependencyUnavailable  = -32002
	errCodeTimeout                = -32003
	errCodeConflict               = -32004
	errCodeFatal                  = -32005

	errCodeInvalidRequest = -32600
	errCodeMethodNotFound = -32601
	errCodeInvalidParams  = -32602
	errCodeInternalError  = -32603
)

// toolError is the error shape returned from a tool handler; the go-sdk
// maps a returned error to a JSON-RPC error response carrying its message.
type toolError struct {
	Code    int
	Message string
}

func (e *toolError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// mapError converts an error returned by the memory/rules/codeindex/storage
// layers into a toolError, switching on the shared memerrors.Kind taxonomy
// rather than string-matching messages.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var me *memerrors.Error
	if stderrors.As(err, &me) {
		return mapMemctxError(me)
	}

	return &toolError{Code: errCodeInternalError, Message: err.Error()}
}

func mapMemctxError(me *memerrors.Error) *toolError {
	message := me.Message
	if me.Suggestion != "" {
		message = fmt.Sprintf("%s %s", message, me.Suggestion)
	}

	switch me.Kind {
	case memerrors.Validation:
		return &toolError{Code: errCodeInvalidParams, Message: message}
	case memerrors.NotFound:
		return &toolError{Code: errCodeNotFound, Message: message}
	case memerrors.Conflict:
		return &toolError{Code: errCodeConflict, Message: message}
	case memerrors.DependencyUnavailable:
		return &toolError{Code: errCodeDependencyUnavailable, Message: message}
	case memerrors.Timeout:
		return &toolError{Code: errCodeTimeout, Message: message}
	case memerrors.Fatal:
		return &toolError{Code: errCodeFatal, Message: message}
	default: // Transient and unknown kinds
		return &toolError{Code: errCodeInternalError, Message: message}
	}
}

// newInvalidParamsError builds a toolError for a caller-supplied argument
// problem that never reached the memory/rules layer (e.g. an unparsable
// category before Remember is even called).
func newInvalidParamsError(msg string) error {
	return &toolError{Code: errCodeInvalidParams, Message: msg}
}

// newMethodNotFoundError reports an unknown tool name, mirroring the
// go-sdk's own ListTools/CallTool dispatch error for an unregistered name.
func newMethodNotFoundError(name string) error {
	return &toolError{Code: errCodeMethodNotFound, Message: fmt.Sprintf("tool %q not found", name)}
}
