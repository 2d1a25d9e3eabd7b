package types

import (
	"errors"
	"fmt"

	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// Transaction is the unsigned ledger transaction built from an intent: one
// InvokeHostFunction operation calling a contract function.
type Transaction struct {
	SourceAccount string
	// Fee is the total fee: inclusion fee plus resource fee once simulated.
	Fee      uint32
	Sequence int64
	// MaxTime is the upper time bound in unix seconds; zero is unbounded.
	MaxTime int64

	ContractID string
	Function   string
	Args       []Value

	// ResourceData is the base64 SorobanTransactionData returned by
	// simulation.
	ResourceData string
	// Auth holds base64 SorobanAuthorizationEntry values returned by
	// simulation.
	Auth []string
}

// Build returns the transaction as a txnbuild value.
func (tx Transaction) Build() (*txnbuild.Transaction, error) {
	contract, err := ScAddress(tx.ContractID)
	if err != nil {
		return nil, err
	}
	args := make([]xdr.ScVal, len(tx.Args))
	for i, a := range tx.Args {
		args[i] = a.ScVal()
	}

	op := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: contract,
				FunctionName:    xdr.ScSymbol(tx.Function),
				Args:            args,
			},
		},
	}
	if tx.ResourceData != "" {
		var data xdr.SorobanTransactionData
		if err := xdr.SafeUnmarshalBase64(tx.ResourceData, &data); err != nil {
			return nil, fmt.Errorf("decoding resource data: %w", err)
		}
		op.Ext = xdr.TransactionExt{V: 1, SorobanData: &data}
	}
	for i, a := range tx.Auth {
		var entry xdr.SorobanAuthorizationEntry
		if err := xdr.SafeUnmarshalBase64(a, &entry); err != nil {
			return nil, fmt.Errorf("decoding auth entry %d: %w", i, err)
		}
		op.Auth = append(op.Auth, entry)
	}

	return txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount: &txnbuild.SimpleAccount{AccountID: tx.SourceAccount, Sequence: tx.Sequence},
		Operations:    []txnbuild.Operation{op},
		BaseFee:       int64(tx.Fee),
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimebounds(0, tx.MaxTime)},
	})
}

// Encode returns the base64 XDR TransactionEnvelope with no signatures.
func (tx Transaction) Encode() (string, error) {
	t, err := tx.Build()
	if err != nil {
		return "", err
	}
	return t.Base64()
}

// Hash returns the hex transaction id on the given network. It is also the
// payload a wallet signs.
func (tx Transaction) Hash(networkPassphrase string) (string, error) {
	if networkPassphrase == "" {
		return "", errors.New("empty network passphrase")
	}
	t, err := tx.Build()
	if err != nil {
		return "", err
	}
	return t.HashHex(networkPassphrase)
}

// ParseEnvelope parses a base64 XDR TransactionEnvelope. Fee bump envelopes
// are rejected.
func ParseEnvelope(s string) (*txnbuild.Transaction, error) {
	gt, err := txnbuild.TransactionFromXDR(s)
	if err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	t, ok := gt.Transaction()
	if !ok {
		return nil, errors.New("decoding envelope: fee bump transactions are not supported")
	}
	return t, nil
}

// DecodeEnvelope parses a signed envelope. It fails if there is no
// signature.
func DecodeEnvelope(s string) (*txnbuild.Transaction, error) {
	t, err := ParseEnvelope(s)
	if err != nil {
		return nil, err
	}
	if len(t.Signatures()) == 0 {
		return nil, errors.New("decoding envelope: no signatures")
	}
	return t, nil
}

// DecodeTransaction parses the output of Transaction.Encode, or any envelope
// carrying a single contract invocation.
func DecodeTransaction(s string) (Transaction, error) {
	t, err := ParseEnvelope(s)
	if err != nil {
		return Transaction{}, err
	}
	return TransactionFrom(t)
}

// TransactionFrom converts a txnbuild transaction back into a Transaction.
func TransactionFrom(t *txnbuild.Transaction) (Transaction, error) {
	ops := t.Operations()
	if len(ops) != 1 {
		return Transaction{}, fmt.Errorf("decoding transaction: %d operations, want 1", len(ops))
	}
	invoke, ok := ops[0].(*txnbuild.InvokeHostFunction)
	if !ok || invoke.HostFunction.InvokeContract == nil {
		return Transaction{}, fmt.Errorf("decoding transaction: %T is not a contract invocation", ops[0])
	}
	call := invoke.HostFunction.InvokeContract
	contractID, err := call.ContractAddress.String()
	if err != nil {
		return Transaction{}, fmt.Errorf("decoding transaction: %w", err)
	}

	tx := Transaction{
		SourceAccount: t.SourceAccount().AccountID,
		Fee:           uint32(t.MaxFee()),
		Sequence:      t.SequenceNumber(),
		MaxTime:       t.Timebounds().MaxTime,
		ContractID:    contractID,
		Function:      string(call.FunctionName),
		Args:          make([]Value, len(call.Args)),
	}
	for i, a := range call.Args {
		tx.Args[i] = FromScVal(a)
	}
	if invoke.Ext.SorobanData != nil {
		if tx.ResourceData, err = xdr.MarshalBase64(*invoke.Ext.SorobanData); err != nil {
			return Transaction{}, err
		}
	}
	for _, entry := range invoke.Auth {
		a, err := xdr.MarshalBase64(entry)
		if err != nil {
			return Transaction{}, err
		}
		tx.Auth = append(tx.Auth, a)
	}
	return tx, nil
}
