package types

import (
	"errors"
	"fmt"
	"time"
)

// TransactionIntent describes one contract call before it becomes a ledger
// transaction. An intent is immutable: construct it with NewReadIntent or
// NewWriteIntent and read it through its accessors.
type TransactionIntent struct {
	operation  string
	args       []Value
	contractID string
	source     string
	fee        uint32
	timeout    time.Duration
	network    string
	readOnly   bool
}

// IntentParams carries the fields shared by read and write intents.
type IntentParams struct {
	ContractID        string
	Operation         string
	Args              []Value
	Source            string
	Fee               uint32
	Timeout           time.Duration
	NetworkPassphrase string
}

// NewReadIntent builds an intent that is only ever simulated.
func NewReadIntent(p IntentParams) (TransactionIntent, error) {
	return newIntent(p, true)
}

// NewWriteIntent builds an intent that is simulated, signed and submitted.
func NewWriteIntent(p IntentParams) (TransactionIntent, error) {
	return newIntent(p, false)
}

func newIntent(p IntentParams, readOnly bool) (TransactionIntent, error) {
	switch {
	case p.ContractID == "":
		return TransactionIntent{}, errors.New("intent: empty contract id")
	case p.Operation == "":
		return TransactionIntent{}, errors.New("intent: empty operation")
	case p.Source == "":
		return TransactionIntent{}, errors.New("intent: empty source account")
	case p.NetworkPassphrase == "":
		return TransactionIntent{}, errors.New("intent: empty network passphrase")
	case p.Timeout <= 0:
		return TransactionIntent{}, fmt.Errorf("intent: non-positive timeout %v", p.Timeout)
	}

	return TransactionIntent{
		operation:  p.Operation,
		args:       append([]Value(nil), p.Args...),
		contractID: p.ContractID,
		source:     p.Source,
		fee:        p.Fee,
		timeout:    p.Timeout,
		network:    p.NetworkPassphrase,
		readOnly:   readOnly,
	}, nil
}

func (i TransactionIntent) Operation() string         { return i.operation }
func (i TransactionIntent) ContractID() string        { return i.contractID }
func (i TransactionIntent) Source() string            { return i.source }
func (i TransactionIntent) Fee() uint32               { return i.fee }
func (i TransactionIntent) Timeout() time.Duration    { return i.timeout }
func (i TransactionIntent) NetworkPassphrase() string { return i.network }
func (i TransactionIntent) ReadOnly() bool            { return i.readOnly }

// Args returns a copy of the call arguments.
func (i TransactionIntent) Args() []Value {
	return append([]Value(nil), i.args...)
}

// ActionKey identifies the logical user action an intent belongs to. Two
// write intents with the same key must not be in flight together.
func (i TransactionIntent) ActionKey() string {
	return i.source + "/" + i.operation
}

// Transaction turns the intent into an unsigned transaction with the given
// sequence number. Time bounds start at now and end after the intent timeout.
func (i TransactionIntent) Transaction(sequence int64, now time.Time) Transaction {
	return Transaction{
		SourceAccount: i.source,
		Fee:           i.fee,
		Sequence:      sequence,
		MaxTime:       now.Add(i.timeout).Unix(),
		ContractID:    i.contractID,
		Function:      i.operation,
		Args:          i.Args(),
	}
}

func (i TransactionIntent) String() string {
	kind := "write"
	if i.readOnly {
		kind = "read"
	}
	return fmt.Sprintf("Intent{%s %s args=%d}", kind, i.operation, len(i.args))
}
