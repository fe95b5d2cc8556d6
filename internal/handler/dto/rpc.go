package dto

import (
	"encoding/json"

	"github.com/keyport/keyport/internal/rpc"
)

// RPCResult is a successful provider response.
type RPCResult struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result"`
}

// RPCFailure is a failed provider response.
type RPCFailure struct {
	ID    json.RawMessage `json:"id,omitempty"`
	Error *rpc.RPCError   `json:"error"`
}
