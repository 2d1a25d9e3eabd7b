package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the wallet, contract, pipeline and market
// packages. Callers classify failures with errors.Is.
var (
	ErrWalletUnavailable   = errors.New("wallet unavailable")
	ErrConnectionRejected  = errors.New("wallet connection rejected")
	ErrNotConnected        = errors.New("wallet not connected")
	ErrSigningRejected     = errors.New("signing rejected")
	ErrUnknownEnergySource = errors.New("unknown energy source")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrSimulateFailed      = errors.New("simulation failed")
	ErrSubmitFailed        = errors.New("submission failed")
	ErrConfirmTimeout      = errors.New("confirmation timed out")
	ErrDecode              = errors.New("decode error")
	ErrNetwork             = errors.New("network error")
)

// QuantityError reports a user supplied quantity that is not a positive
// integer.
type QuantityError struct {
	Field string
	Input string
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("%s must be a positive integer, got %q", e.Field, e.Input)
}

func (e *QuantityError) Is(target error) bool { return target == ErrInvalidQuantity }

// DecodeError reports a contract result whose shape does not match the
// domain type it is decoded into.
type DecodeError struct {
	Want string
	Got  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoding %s from %s: %v", e.Want, e.Got, e.Err)
	}
	return fmt.Sprintf("decoding %s: unexpected %s", e.Want, e.Got)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecodeError is a shorthand used by decoders.
func NewDecodeError(want string, got Value, err error) *DecodeError {
	return &DecodeError{Want: want, Got: got.Describe(), Err: err}
}

// NetworkError wraps a transport level failure talking to the ledger or a
// remote wallet.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func (e *NetworkError) Unwrap() error { return e.Err }
