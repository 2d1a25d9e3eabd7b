// Package soroban implements ledger.Client against a Soroban-RPC style
// JSON-RPC 2.0 endpoint.
package soroban

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stellar/go/xdr"
	"golang.org/x/time/rate"

	"github.com/energymarket/marketclient/ledger"
	"github.com/energymarket/marketclient/libs/log"
	rpcclient "github.com/energymarket/marketclient/rpc/jsonrpc/client"
	rpctypes "github.com/energymarket/marketclient/rpc/jsonrpc/types"
	"github.com/energymarket/marketclient/types"
)

// RPC error code the endpoint uses for a missing ledger entry.
const codeNotFound = -32004

// Client talks to the ledger RPC.
type Client struct {
	caller  rpcclient.Caller
	logger  log.Logger
	limiter *rate.Limiter
}

var _ ledger.Client = (*Client)(nil)

// Option sets an optional parameter on the Client.
type Option func(*Client)

// WithRateLimit caps the request rate. Public RPC nodes throttle clients
// that exceed their quota, so requests wait for a token instead.
func WithRateLimit(limit float64, burst int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
		}
	}
}

// New returns a Client for the endpoint at remote.
func New(remote string, timeout time.Duration, logger log.Logger, options ...Option) (*Client, error) {
	c, err := rpcclient.New(remote, timeout)
	if err != nil {
		return nil, err
	}
	return NewWithCaller(c, logger, options...), nil
}

// NewWithCaller returns a Client using an existing JSON-RPC caller.
func NewWithCaller(caller rpcclient.Caller, logger log.Logger, options ...Option) *Client {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	c := &Client{caller: caller, logger: logger}
	for _, option := range options {
		option(c)
	}
	return c
}

type getLedgerEntriesResponse struct {
	Entries []struct {
		Key string `json:"key"`
		XDR string `json:"xdr"`
	} `json:"entries"`
	LatestLedger uint32 `json:"latestLedger"`
}

// GetAccount reads the account ledger entry of address.
func (c *Client) GetAccount(ctx context.Context, address string) (*ledger.Account, error) {
	aid, err := xdr.AddressToAccountId(address)
	if err != nil {
		return nil, fmt.Errorf("getLedgerEntries: %w", err)
	}
	key, err := aid.LedgerKey()
	if err != nil {
		return nil, err
	}
	encodedKey, err := key.MarshalBinaryBase64()
	if err != nil {
		return nil, err
	}

	var res getLedgerEntriesResponse
	if err := c.call(ctx, "getLedgerEntries", map[string][]string{"keys": {encodedKey}}, &res); err != nil {
		var rpcErr *rpctypes.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == codeNotFound {
			return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, address)
		}
		return nil, err
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, address)
	}

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(res.Entries[0].XDR, &data); err != nil {
		return nil, fmt.Errorf("getLedgerEntries: decoding entry: %w", err)
	}
	if data.Account == nil {
		return nil, fmt.Errorf("getLedgerEntries: entry for %s is %s, not an account", address, data.Type)
	}
	return &ledger.Account{ID: data.Account.AccountId.Address(), Sequence: int64(data.Account.SeqNum)}, nil
}

type simulateResponse struct {
	Results []struct {
		Auth []string `json:"auth"`
		XDR  string   `json:"xdr"`
	} `json:"results"`
	MinResourceFee  string `json:"minResourceFee"`
	TransactionData string `json:"transactionData"`
	LatestLedger    uint32 `json:"latestLedger"`
	Error           string `json:"error,omitempty"`
}

func (c *Client) SimulateTransaction(ctx context.Context, tx types.Transaction) (*ledger.SimulateResult, error) {
	encoded, err := tx.Encode()
	if err != nil {
		return nil, err
	}

	var res simulateResponse
	if err := c.call(ctx, "simulateTransaction", map[string]string{"transaction": encoded}, &res); err != nil {
		return nil, err
	}

	out := &ledger.SimulateResult{
		TransactionData: res.TransactionData,
		LatestLedger:    res.LatestLedger,
		Error:           res.Error,
	}
	if out.Failed() {
		return out, nil
	}

	if res.MinResourceFee != "" {
		fee, err := strconv.ParseUint(res.MinResourceFee, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("simulateTransaction: bad minResourceFee %q: %w", res.MinResourceFee, err)
		}
		out.MinResourceFee = uint32(fee)
	}
	if len(res.Results) > 0 {
		if res.Results[0].XDR != "" {
			if out.Result, err = types.DecodeValue(res.Results[0].XDR); err != nil {
				return nil, fmt.Errorf("simulateTransaction: %w", err)
			}
		}
		out.Auth = res.Results[0].Auth
	}
	return out, nil
}

type sendResponse struct {
	Hash           string `json:"hash"`
	Status         string `json:"status"`
	ErrorResultXDR string `json:"errorResultXdr,omitempty"`
	LatestLedger   uint32 `json:"latestLedger"`
}

func (c *Client) SendTransaction(ctx context.Context, envelope string) (*ledger.SendResult, error) {
	var res sendResponse
	if err := c.call(ctx, "sendTransaction", map[string]string{"transaction": envelope}, &res); err != nil {
		return nil, err
	}
	return &ledger.SendResult{
		Hash:         res.Hash,
		Status:       ledger.SendStatus(res.Status),
		ErrorResult:  res.ErrorResultXDR,
		LatestLedger: res.LatestLedger,
	}, nil
}

type getTransactionResponse struct {
	Status        string `json:"status"`
	Ledger        uint32 `json:"ledger"`
	ReturnValue   string `json:"returnValue,omitempty"`
	ResultXDR     string `json:"resultXdr,omitempty"`
	ResultMetaXDR string `json:"resultMetaXdr,omitempty"`
}

func (c *Client) GetTransaction(ctx context.Context, hash string) (*ledger.TransactionResult, error) {
	var res getTransactionResponse
	if err := c.call(ctx, "getTransaction", map[string]string{"hash": hash}, &res); err != nil {
		return nil, err
	}

	out := &ledger.TransactionResult{
		Status:    ledger.TxStatus(res.Status),
		Ledger:    res.Ledger,
		ResultXDR: res.ResultXDR,
	}
	switch out.Status {
	case ledger.TxStatusSuccess, ledger.TxStatusFailed, ledger.TxStatusNotFound:
	default:
		return nil, fmt.Errorf("getTransaction: unknown status %q", res.Status)
	}

	var err error
	switch {
	case res.ReturnValue != "":
		out.ReturnValue, err = types.DecodeValue(res.ReturnValue)
	case res.ResultMetaXDR != "":
		out.ReturnValue, err = returnValueFromMeta(res.ResultMetaXDR)
	}
	if err != nil {
		return nil, fmt.Errorf("getTransaction: %w", err)
	}
	return out, nil
}

// returnValueFromMeta extracts the contract return value from a base64
// TransactionMeta. Metas without Soroban data yield void.
func returnValueFromMeta(encoded string) (types.Value, error) {
	var meta xdr.TransactionMeta
	if err := xdr.SafeUnmarshalBase64(encoded, &meta); err != nil {
		return types.Value{}, fmt.Errorf("decoding result meta: %w", err)
	}
	if meta.V3 == nil || meta.V3.SorobanMeta == nil {
		return types.VoidValue(), nil
	}
	return types.FromScVal(meta.V3.SorobanMeta.ReturnValue), nil
}

// call performs one RPC. Errors reported by the endpoint are returned as
// *rpctypes.RPCError; everything else is a transport failure.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &types.NetworkError{Op: method, Err: err}
		}
	}

	start := time.Now()
	_, err := c.caller.Call(ctx, method, params, result)
	c.logger.Debug("ledger rpc", "method", method, "took", time.Since(start), "err", err)
	if err == nil {
		return nil
	}

	var rpcErr *rpctypes.RPCError
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w", method, err)
	}
	return &types.NetworkError{Op: method, Err: err}
}
