package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	rpcclient "github.com/energymarket/marketclient/rpc/jsonrpc/client"
	rpctypes "github.com/energymarket/marketclient/rpc/jsonrpc/types"
	"github.com/energymarket/marketclient/types"
)

// CodeUserRejected is the JSON-RPC error code a remote signer answers with
// when the user declines a request.
const CodeUserRejected = 4001

// RemoteProvider is a Provider that forwards requests to an external signer
// speaking JSON-RPC: isConnected, getPublicKey and signTransaction.
type RemoteProvider struct {
	caller rpcclient.Caller
}

var _ Provider = (*RemoteProvider)(nil)

// NewRemoteProvider returns a provider for the signer at remote. An empty
// remote yields a provider that is never available.
func NewRemoteProvider(remote string, timeout time.Duration) (*RemoteProvider, error) {
	if remote == "" {
		return &RemoteProvider{}, nil
	}
	c, err := rpcclient.New(remote, timeout)
	if err != nil {
		return nil, err
	}
	return &RemoteProvider{caller: c}, nil
}

// NewRemoteProviderWithCaller returns a provider using an existing caller.
func NewRemoteProviderWithCaller(caller rpcclient.Caller) *RemoteProvider {
	return &RemoteProvider{caller: caller}
}

// Available reports whether a signer endpoint is configured. No request is
// made.
func (p *RemoteProvider) Available() bool { return p.caller != nil }

func (p *RemoteProvider) IsConnected(ctx context.Context) (bool, error) {
	var ok bool
	if err := p.call(ctx, "isConnected", nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (p *RemoteProvider) GetPublicKey(ctx context.Context) (string, error) {
	var key string
	if err := p.call(ctx, "getPublicKey", nil, &key); err != nil {
		return "", err
	}
	return key, nil
}

type signTransactionParams struct {
	Transaction       string `json:"transaction"`
	NetworkPassphrase string `json:"networkPassphrase"`
	Address           string `json:"address,omitempty"`
}

func (p *RemoteProvider) SignTransaction(ctx context.Context, encodedTx string, opts SignOptions) (string, error) {
	var signed string
	err := p.call(ctx, "signTransaction", signTransactionParams{
		Transaction:       encodedTx,
		NetworkPassphrase: opts.NetworkPassphrase,
		Address:           opts.Address,
	}, &signed)
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (p *RemoteProvider) call(ctx context.Context, method string, params, result interface{}) error {
	if p.caller == nil {
		return types.ErrWalletUnavailable
	}

	_, err := p.caller.Call(ctx, method, params, result)
	if err == nil {
		return nil
	}

	var rpcErr *rpctypes.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == CodeUserRejected {
			return fmt.Errorf("%w: %s", ErrUserRejected, rpcErr.Message)
		}
		return fmt.Errorf("remote wallet %s: %w", method, err)
	}
	return &types.NetworkError{Op: "wallet " + method, Err: err}
}
