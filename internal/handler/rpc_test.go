package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyport/keyport/internal/rpc"
)

type fakeRequestProvider struct {
	got    rpc.Request
	result any
	err    error
}

func (f *fakeRequestProvider) Request(_ context.Context, req rpc.Request) (any, error) {
	f.got = req
	return f.result, f.err
}

func TestRPCHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider *fakeRequestProvider
		body     string
		wantCode int
		wantBody string
	}{
		{
			name:     "result",
			provider: &fakeRequestProvider{result: []string{"0xabc"}},
			body:     `{"id":7,"method":"eth_accounts"}`,
			wantCode: http.StatusOK,
			wantBody: `{"id":7,"result":["0xabc"]}`,
		},
		{
			name:     "false result is kept",
			provider: &fakeRequestProvider{result: false},
			body:     `{"method":"eth_syncing"}`,
			wantCode: http.StatusOK,
			wantBody: `{"result":false}`,
		},
		{
			name:     "null result is kept",
			provider: &fakeRequestProvider{},
			body:     `{"method":"wallet_switchEthereumChain","params":[{"chainId":"0x1"}]}`,
			wantCode: http.StatusOK,
			wantBody: `{"result":null}`,
		},
		{
			name:     "provider error",
			provider: &fakeRequestProvider{err: &rpc.ProviderError{Code: rpc.CodeUnsupportedMethod, Message: "unsupported method: eth_sign"}},
			body:     `{"id":"a","method":"eth_sign"}`,
			wantCode: http.StatusOK,
			wantBody: `{"id":"a","error":{"code":4200,"message":"unsupported method: eth_sign"}}`,
		},
		{
			name:     "upstream error",
			provider: &fakeRequestProvider{err: &rpc.RPCError{Code: -32000, Message: "execution reverted", Data: json.RawMessage(`"0x08c379a0"`)}},
			body:     `{"method":"eth_call","params":[{}]}`,
			wantCode: http.StatusOK,
			wantBody: `{"error":{"code":-32000,"message":"execution reverted","data":"0x08c379a0"}}`,
		},
		{
			name:     "malformed body",
			provider: &fakeRequestProvider{},
			body:     `{"method":`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":{"code":-32602,"message":"invalid request body"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewRPCHandler(tt.provider)
			rec := httptest.NewRecorder()
			h.Request(rec, httptest.NewRequest(http.MethodPost, "/api/rpc", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestRPCHandler_PassesParams(t *testing.T) {
	t.Parallel()

	provider := &fakeRequestProvider{result: "0x0"}
	h := NewRPCHandler(provider)
	rec := httptest.NewRecorder()
	h.Request(rec, httptest.NewRequest(http.MethodPost, "/api/rpc",
		strings.NewReader(`{"method":"eth_getBalance","params":["0xabc","latest"]}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "eth_getBalance", provider.got.Method)
	assert.JSONEq(t, `["0xabc","latest"]`, string(provider.got.Params))
}
