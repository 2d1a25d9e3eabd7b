// Package ledger defines the narrow interface the marketplace client needs
// from the ledger: account lookup, simulation, submission and transaction
// status.
package ledger

import (
	"context"
	"errors"

	"github.com/energymarket/marketclient/types"
)

// ErrAccountNotFound is returned by GetAccount for an address that has no
// ledger entry.
var ErrAccountNotFound = errors.New("account not found")

// Client is the ledger RPC surface. Implementations wrap transport failures
// in *types.NetworkError so callers can tell them apart from errors the
// ledger itself reported.
type Client interface {
	// GetAccount returns the current sequence number of address.
	GetAccount(ctx context.Context, address string) (*Account, error)

	// SimulateTransaction dry-runs tx against current ledger state.
	SimulateTransaction(ctx context.Context, tx types.Transaction) (*SimulateResult, error)

	// SendTransaction submits a signed, base64 encoded envelope.
	SendTransaction(ctx context.Context, envelope string) (*SendResult, error)

	// GetTransaction reports the status of a submitted transaction.
	GetTransaction(ctx context.Context, hash string) (*TransactionResult, error)
}

// Account is the part of a ledger account entry a transaction source needs.
type Account struct {
	ID       string `json:"id"`
	Sequence int64  `json:"sequence,string"`
}

// NextSequence is the sequence number the next transaction from the account
// must carry.
func (a Account) NextSequence() int64 { return a.Sequence + 1 }

// SimulateResult is the outcome of a dry run. A non-empty Error means the
// call would fail; Result is then undefined.
type SimulateResult struct {
	Result         types.Value
	MinResourceFee uint32
	// TransactionData is the base64 SorobanTransactionData to attach to the
	// transaction before signing.
	TransactionData string
	// Auth holds base64 SorobanAuthorizationEntry values the invocation
	// needs.
	Auth         []string
	LatestLedger uint32
	Error        string
}

// Failed reports whether the simulation rejected the call.
func (r SimulateResult) Failed() bool { return r.Error != "" }

// SendStatus is the immediate answer of the ledger to a submission.
type SendStatus string

const (
	SendStatusPending       SendStatus = "PENDING"
	SendStatusDuplicate     SendStatus = "DUPLICATE"
	SendStatusTryAgainLater SendStatus = "TRY_AGAIN_LATER"
	SendStatusError         SendStatus = "ERROR"
)

// Accepted reports whether the ledger took the envelope for inclusion.
func (s SendStatus) Accepted() bool {
	return s == SendStatusPending || s == SendStatusDuplicate
}

type SendResult struct {
	Hash         string
	Status       SendStatus
	ErrorResult  string
	LatestLedger uint32
}

// TxStatus is the finality state of a submitted transaction.
type TxStatus string

const (
	TxStatusSuccess  TxStatus = "SUCCESS"
	TxStatusFailed   TxStatus = "FAILED"
	TxStatusNotFound TxStatus = "NOT_FOUND"
)

type TransactionResult struct {
	Status      TxStatus
	Ledger      uint32
	ReturnValue types.Value
	ResultXDR   string
}
