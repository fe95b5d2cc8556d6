// Package rpc implements the EIP-1193 wallet provider behind /api/rpc.
//
// Account and wallet methods are answered from the signed-in user's custody
// organization. Signing methods are refused. Everything else is forwarded to
// an upstream JSON-RPC node.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/metrics"
)

// Methods answered without the upstream node.
const (
	MethodAccounts            = "eth_accounts"
	MethodRequestAccounts     = "eth_requestAccounts"
	MethodSyncing             = "eth_syncing"
	MethodGetPermissions      = "wallet_getPermissions"
	MethodRequestPermissions  = "wallet_requestPermissions"
	MethodAddEthereumChain    = "wallet_addEthereumChain"
	MethodSwitchEthereumChain = "wallet_switchEthereumChain"
	MethodWatchAsset          = "wallet_watchAsset"
	MethodSendTransaction     = "eth_sendTransaction"
	MethodSign                = "eth_sign"
	MethodSignTransaction     = "eth_signTransaction"
	MethodSignTypedDataV4     = "eth_signTypedData_v4"
	MethodPersonalSign        = "personal_sign"
)

const (
	metricsLabelUpstream = "upstream"
	maxMethodLength      = 128
)

// signingMethods need a key the server does not hold.
var signingMethods = map[string]bool{
	MethodSendTransaction: true,
	MethodSign:            true,
	MethodSignTransaction: true,
	MethodSignTypedDataV4: true,
	MethodPersonalSign:    true,
}

// Request is an EIP-1193 request posted by the browser.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// AccountLister lists the addresses of a custody organization.
type AccountLister interface {
	WalletAddresses(ctx context.Context, organizationID string) ([]string, error)
}

// Caller forwards a JSON-RPC call to a node.
type Caller interface {
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

// Provider answers EIP-1193 requests for the user in the request context.
type Provider struct {
	accounts AccountLister
	upstream Caller
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewProvider creates a new Provider.
func NewProvider(accounts AccountLister, upstream Caller, logger *slog.Logger, recorder metrics.Recorder) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Provider{
		accounts: accounts,
		upstream: upstream,
		logger:   logger,
		metrics:  recorder,
	}
}

// Request answers req. Errors are *ProviderError, *RPCError or transport
// failures; ErrorObject maps any of them to a response error object.
func (p *Provider) Request(ctx context.Context, req Request) (any, error) {
	start := time.Now()
	label := metricsLabel(req.Method)

	result, err := p.dispatch(ctx, req)

	p.metrics.IncRPCRequest(label, outcome(err))
	p.metrics.ObserveRPCDuration(label, time.Since(start))
	if err != nil {
		if obj := ErrorObject(err); obj.Code == CodeInternal {
			p.logger.Error("rpc request failed",
				slog.String("method", req.Method),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}
	return result, nil
}

func (p *Provider) dispatch(ctx context.Context, req Request) (any, error) {
	if req.Method == "" || len(req.Method) > maxMethodLength {
		return nil, invalidParams("missing or invalid method")
	}
	if !validParams(req.Params) {
		return nil, invalidParams("params must be an array or object")
	}

	switch req.Method {
	case MethodAccounts, MethodRequestAccounts:
		return p.userAccounts(ctx)
	case MethodSyncing:
		return false, nil
	case MethodGetPermissions, MethodRequestPermissions:
		return []any{}, nil
	case MethodAddEthereumChain, MethodSwitchEthereumChain:
		return nil, nil
	case MethodWatchAsset:
		return true, nil
	}

	if signingMethods[req.Method] {
		return nil, unsupported(req.Method)
	}

	return p.upstream.Call(ctx, req.Method, req.Params)
}

// userAccounts lists every address of the session user's organization with
// the session wallet first.
func (p *Provider) userAccounts(ctx context.Context) ([]string, error) {
	user := auth.UserFromContext(ctx)
	if user == nil || user.OrgID == "" {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "unauthorized"}
	}

	addresses, err := p.accounts.WalletAddresses(ctx, user.OrgID)
	if err != nil {
		return nil, err
	}

	ordered := make([]string, 0, len(addresses)+1)
	if isAddress(user.Wallet) {
		ordered = append(ordered, user.Wallet)
	}
	for _, a := range addresses {
		if a != user.Wallet {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

func isAddress(wallet string) bool {
	return len(wallet) > 2 && wallet[:2] == "0x"
}

func validParams(params json.RawMessage) bool {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	return trimmed[0] == '[' || trimmed[0] == '{'
}

// metricsLabel bounds label cardinality to the locally known methods.
func metricsLabel(method string) string {
	switch method {
	case MethodAccounts, MethodRequestAccounts, MethodSyncing,
		MethodGetPermissions, MethodRequestPermissions,
		MethodAddEthereumChain, MethodSwitchEthereumChain, MethodWatchAsset:
		return method
	}
	if signingMethods[method] {
		return method
	}
	return metricsLabelUpstream
}

func outcome(err error) string {
	if err == nil {
		return metrics.StatusSuccess
	}
	obj := ErrorObject(err)
	if obj.Code == CodeUnauthorized || obj.Code == CodeUnsupportedMethod {
		return metrics.StatusDenied
	}
	return metrics.StatusFailed
}
