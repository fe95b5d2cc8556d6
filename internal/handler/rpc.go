package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/keyport/keyport/internal/handler/dto"
	"github.com/keyport/keyport/internal/rpc"
)

// RequestProvider answers EIP-1193 requests.
type RequestProvider interface {
	Request(ctx context.Context, req rpc.Request) (any, error)
}

// RPCHandler exposes the wallet provider over HTTP.
type RPCHandler struct {
	provider RequestProvider
}

// NewRPCHandler creates a new RPCHandler.
func NewRPCHandler(provider RequestProvider) *RPCHandler {
	return &RPCHandler{provider: provider}
}

// Request handles POST /api/rpc. Provider errors are returned as an error
// object with status 200, as EIP-1193 clients expect.
func (h *RPCHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req rpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.RPCFailure{
			Error: &rpc.RPCError{Code: rpc.CodeInvalidParams, Message: "invalid request body"},
		})
		return
	}

	result, err := h.provider.Request(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusOK, dto.RPCFailure{ID: req.ID, Error: rpc.ErrorObject(err)})
		return
	}
	writeJSON(w, http.StatusOK, dto.RPCResult{ID: req.ID, Result: result})
}
