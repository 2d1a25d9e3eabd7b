package wallet

import (
	"context"
	"errors"
)

// ErrUserRejected is returned by a Provider when the user declines a
// connection or signing request.
var ErrUserRejected = errors.New("user rejected the request")

// SignOptions accompany a signing request.
type SignOptions struct {
	NetworkPassphrase string
	// Address is the account the caller expects to sign with.
	Address string
}

// Provider is the signing capability a Session delegates to. It holds the
// private key; the Session only ever sees public keys and signed envelopes.
type Provider interface {
	// Available reports whether the signer is present. It must not block or
	// perform I/O beyond a local check.
	Available() bool

	// IsConnected reports whether the user has already authorized this
	// client.
	IsConnected(ctx context.Context) (bool, error)

	// GetPublicKey requests access and returns the account address. It fails
	// with ErrUserRejected if the user declines.
	GetPublicKey(ctx context.Context) (string, error)

	// SignTransaction signs an encoded transaction and returns the encoded
	// envelope. It fails with ErrUserRejected if the user declines.
	SignTransaction(ctx context.Context, encodedTx string, opts SignOptions) (string, error)
}
