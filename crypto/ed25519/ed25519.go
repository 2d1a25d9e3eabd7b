// Package ed25519 wraps the curve25519-voi ed25519 implementation with the
// key and address types used by wallets.
package ed25519

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/stellar/go/strkey"
)

const (
	// PubKeySize is the size, in bytes, of public keys as used in this package.
	PubKeySize = ed25519.PublicKeySize
	// PrivateKeySize is the size, in bytes, of private keys as used in this package.
	PrivateKeySize = ed25519.PrivateKeySize
	// SignatureSize is the size of an Edwards25519 signature. Namely the size of
	// a compressed Edwards25519 point, and a field element. Both of which are 32 bytes.
	SignatureSize = ed25519.SignatureSize
	// SeedSize is the size, in bytes, of private key seeds. These are the
	// private key representations used by RFC 8032.
	SeedSize = ed25519.SeedSize

	KeyType = "ed25519"
)

// PrivKey implements a 64 byte ed25519 private key (seed || public key).
type PrivKey []byte

// Bytes returns the privkey byte format.
func (privKey PrivKey) Bytes() []byte {
	return []byte(privKey)
}

// Sign produces a signature on the provided message.
// This assumes the privkey is wellformed in the golang format.
// The first 32 bytes should be random,
// corresponding to the normal ed25519 private key.
// The latter 32 bytes should be the compressed public key.
// If these conditions aren't met, Sign will panic or produce an
// incorrect signature.
func (privKey PrivKey) Sign(msg []byte) ([]byte, error) {
	if len(privKey) != PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size %d", len(privKey))
	}
	return ed25519.Sign(ed25519.PrivateKey(privKey), msg), nil
}

// PubKey gets the corresponding public key from the private key.
//
// Panics if the private key is not initialized.
func (privKey PrivKey) PubKey() PubKey {
	// If the latter 32 bytes of the privkey are all zero, privkey is not
	// initialized.
	initialized := false
	for _, v := range privKey[32:] {
		if v != 0 {
			initialized = true
			break
		}
	}

	if !initialized {
		panic("Expected ed25519 PrivKey to include concatenated pubkey bytes")
	}

	pubkeyBytes := make([]byte, PubKeySize)
	copy(pubkeyBytes, privKey[32:])
	return PubKey(pubkeyBytes)
}

// Seed returns the 32 byte RFC 8032 seed.
func (privKey PrivKey) Seed() []byte {
	return ed25519.PrivateKey(privKey).Seed()
}

// SecretString returns the strkey (S...) encoding of the seed.
func (privKey PrivKey) SecretString() string {
	return strkey.MustEncode(strkey.VersionByteSeed, privKey.Seed())
}

// Equals - you probably don't need to use this.
// Runs in constant time based on length of the keys.
func (privKey PrivKey) Equals(other PrivKey) bool {
	return subtle.ConstantTimeCompare(privKey, other) == 1
}

func (privKey PrivKey) Type() string {
	return KeyType
}

// GenPrivKey generates a new ed25519 private key.
// It uses OS randomness in conjunction with the current global random seed
// to generate the private key.
func GenPrivKey() PrivKey {
	return genPrivKey(rand.Reader)
}

// genPrivKey generates a new ed25519 private key using the provided reader.
func genPrivKey(rand io.Reader) PrivKey {
	_, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		panic(err)
	}

	return PrivKey(priv)
}

// GenPrivKeyFromSecret hashes the secret with SHA2, and uses
// that 32 byte output to create the private key.
// NOTE: secret should be the output of a KDF like bcrypt,
// if it's derived from user input.
func GenPrivKeyFromSecret(secret []byte) PrivKey {
	seed := sha256.Sum256(secret)
	return PrivKey(ed25519.NewKeyFromSeed(seed[:]))
}

// PrivKeyFromSecretString parses an S... strkey seed.
func PrivKeyFromSecretString(s string) (PrivKey, error) {
	seed, err := strkey.Decode(strkey.VersionByteSeed, s)
	if err != nil {
		return nil, err
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("invalid seed size %d", len(seed))
	}
	return PrivKey(ed25519.NewKeyFromSeed(seed)), nil
}

//-------------------------------------

// PubKey implements a 32 byte ed25519 public key.
type PubKey []byte

// Address is the strkey (G...) account address of the public key.
func (pubKey PubKey) Address() string {
	if len(pubKey) != PubKeySize {
		panic("pubkey is incorrect size")
	}
	return strkey.MustEncode(strkey.VersionByteAccountID, pubKey)
}

// Bytes returns the PubKey byte format.
func (pubKey PubKey) Bytes() []byte {
	return []byte(pubKey)
}

// Hint is the last four bytes of the key, used to match a signature to its signer.
func (pubKey PubKey) Hint() [4]byte {
	var hint [4]byte
	copy(hint[:], pubKey[len(pubKey)-4:])
	return hint
}

func (pubKey PubKey) VerifySignature(msg []byte, sig []byte) bool {
	// make sure we use the same algorithm to sign
	if len(sig) != SignatureSize || len(pubKey) != PubKeySize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig)
}

func (pubKey PubKey) String() string {
	return pubKey.Address()
}

func (pubKey PubKey) Type() string {
	return KeyType
}

func (pubKey PubKey) Equals(other PubKey) bool {
	return bytes.Equal(pubKey, other)
}

// ErrInvalidAddress is returned when an account address does not decode.
var ErrInvalidAddress = errors.New("invalid account address")

// PubKeyFromAddress parses a G... account address.
func PubKeyFromAddress(address string) (PubKey, error) {
	raw, err := strkey.Decode(strkey.VersionByteAccountID, address)
	if err == nil && len(raw) != PubKeySize {
		err = fmt.Errorf("payload is %d bytes", len(raw))
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}
	return PubKey(raw), nil
}
