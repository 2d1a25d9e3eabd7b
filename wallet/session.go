// Package wallet manages the connection to a user's signing identity.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/energymarket/marketclient/crypto/ed25519"
	"github.com/energymarket/marketclient/libs/log"
	"github.com/energymarket/marketclient/types"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/xdr"
)

// ConnectionState of a Session.
type ConnectionState uint8

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", uint8(s))
	}
}

// ErrConnectInProgress is returned by Connect while another connect call is
// waiting on the provider.
var ErrConnectInProgress = errors.New("wallet connection already in progress")

// Identity is a snapshot of the session's signing identity. PublicKey is
// empty unless State is StateConnected.
type Identity struct {
	PublicKey string
	State     ConnectionState
}

func (id Identity) Connected() bool { return id.State == StateConnected && id.PublicKey != "" }

// Session owns the WalletIdentity. It is created disconnected and is never
// persisted.
//
// Session is safe for concurrent use.
type Session struct {
	provider Provider
	logger   log.Logger

	mtx      sync.RWMutex
	identity Identity
}

// NewSession returns a disconnected session over provider. A nil provider
// behaves as an absent wallet.
func NewSession(provider Provider, logger log.Logger) *Session {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Session{
		provider: provider,
		logger:   logger.With("module", "wallet"),
	}
}

// Identity returns the current identity. It never blocks on the provider.
func (s *Session) Identity() Identity {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.identity
}

func (s *Session) available() bool {
	return s.provider != nil && s.provider.Available()
}

// Connect asks the provider for access and returns the public key.
func (s *Session) Connect(ctx context.Context) (string, error) {
	if !s.available() {
		s.set(Identity{State: StateDisconnected})
		return "", types.ErrWalletUnavailable
	}

	s.mtx.Lock()
	if s.identity.State == StateConnecting {
		s.mtx.Unlock()
		return "", ErrConnectInProgress
	}
	s.identity = Identity{State: StateConnecting}
	s.mtx.Unlock()

	key, err := s.provider.GetPublicKey(ctx)
	if err == nil {
		_, err = ed25519.PubKeyFromAddress(key)
	}
	if err != nil {
		s.set(Identity{State: StateFailed})
		s.logger.Info("wallet connection failed", "err", err)
		if errors.Is(err, ErrUserRejected) {
			return "", fmt.Errorf("%w: %v", types.ErrConnectionRejected, err)
		}
		return "", fmt.Errorf("connecting wallet: %w", err)
	}

	s.set(Identity{PublicKey: key, State: StateConnected})
	s.logger.Info("wallet connected", "address", ShortAddress(key))
	return key, nil
}

// Restore connects silently if the provider reports an existing
// authorization. It returns false when there is nothing to restore.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if !s.available() {
		return false, nil
	}
	ok, err := s.provider.IsConnected(ctx)
	if err != nil || !ok {
		return false, err
	}
	if _, err := s.Connect(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Disconnect forgets the identity. The provider is not contacted.
func (s *Session) Disconnect() {
	s.set(Identity{State: StateDisconnected})
	s.logger.Info("wallet disconnected")
}

// Sign delegates signing of tx to the provider. tx must be sourced from the
// connected account; otherwise, or when no identity is connected, it fails
// with ErrNotConnected without consulting the provider. The returned
// envelope is verified against the connected public key.
func (s *Session) Sign(ctx context.Context, tx types.Transaction, networkPassphrase string) (string, error) {
	id := s.Identity()
	if !id.Connected() || tx.SourceAccount != id.PublicKey {
		return "", types.ErrNotConnected
	}

	encoded, err := tx.Encode()
	if err != nil {
		return "", err
	}

	signed, err := s.provider.SignTransaction(ctx, encoded, SignOptions{
		NetworkPassphrase: networkPassphrase,
		Address:           id.PublicKey,
	})
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			return "", fmt.Errorf("%w: %v", types.ErrSigningRejected, err)
		}
		return "", fmt.Errorf("signing transaction: %w", err)
	}

	if err := verifyEnvelope(signed, tx, id.PublicKey, networkPassphrase); err != nil {
		return "", fmt.Errorf("wallet returned an invalid envelope: %w", err)
	}
	if s.Identity() != id {
		return "", types.ErrNotConnected
	}
	return signed, nil
}

func (s *Session) set(id Identity) {
	s.mtx.Lock()
	s.identity = id
	s.mtx.Unlock()
}

func verifyEnvelope(encoded string, tx types.Transaction, address, networkPassphrase string) error {
	signed, err := types.DecodeEnvelope(encoded)
	if err != nil {
		return err
	}

	want, err := tx.Hash(networkPassphrase)
	if err != nil {
		return err
	}
	got, err := signed.HashHex(networkPassphrase)
	if err != nil {
		return err
	}
	if got != want {
		return errors.New("envelope does not carry the requested transaction")
	}

	kp, err := keypair.ParseAddress(address)
	if err != nil {
		return err
	}
	hash, err := signed.Hash(networkPassphrase)
	if err != nil {
		return err
	}
	hint := xdr.SignatureHint(kp.Hint())
	for _, sig := range signed.Signatures() {
		if sig.Hint == hint && kp.Verify(hash[:], sig.Signature) == nil {
			return nil
		}
	}
	return errors.New("no valid signature for the source account")
}

// ShortAddress abbreviates an address for display as the first six and last
// four characters.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
