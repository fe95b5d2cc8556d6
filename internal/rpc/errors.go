package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EIP-1193 and JSON-RPC error codes returned by the provider.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeInvalidParams     = -32602
	CodeInternal          = -32603
)

// ErrUpstreamStatus is returned when the upstream node answers with a
// non-2xx status and no JSON-RPC error object.
var ErrUpstreamStatus = errors.New("upstream returned unexpected status")

// ProviderError is an EIP-1193 provider error raised locally.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// RPCError is an error object returned by the upstream JSON-RPC node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func unsupported(method string) *ProviderError {
	return &ProviderError{Code: CodeUnsupportedMethod, Message: "unsupported method: " + method}
}

func invalidParams(message string) *ProviderError {
	return &ProviderError{Code: CodeInvalidParams, Message: message}
}

// ErrorObject converts err into the error object sent to the browser.
// Errors that are neither provider nor upstream errors become -32603.
func ErrorObject(err error) *RPCError {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		obj := &RPCError{Code: provErr.Code, Message: provErr.Message}
		if provErr.Data != nil {
			if data, mErr := json.Marshal(provErr.Data); mErr == nil {
				obj.Data = data
			}
		}
		return obj
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	return &RPCError{Code: CodeInternal, Message: "Internal error"}
}
