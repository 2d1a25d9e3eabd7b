package wallet

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/energymarket/marketclient/crypto/ed25519"
	tmos "github.com/energymarket/marketclient/libs/os"
	"github.com/energymarket/marketclient/types"
	"github.com/stellar/go/xdr"
)

// KeyFile is the on-disk signing key of a FileProvider.
type KeyFile struct {
	Address string
	PrivKey ed25519.PrivKey

	filePath string
}

type keyFileJSON struct {
	Address string `json:"address"`
	Secret  string `json:"secret"`
}

func (k KeyFile) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyFileJSON{Address: k.Address, Secret: k.PrivKey.SecretString()})
}

func (k *KeyFile) UnmarshalJSON(data []byte) error {
	var kj keyFileJSON
	if err := json.Unmarshal(data, &kj); err != nil {
		return err
	}
	priv, err := ed25519.PrivKeyFromSecretString(kj.Secret)
	if err != nil {
		return fmt.Errorf("decoding secret: %w", err)
	}
	if addr := priv.PubKey().Address(); kj.Address != "" && kj.Address != addr {
		return fmt.Errorf("address %s does not match secret (derived %s)", kj.Address, addr)
	}
	k.PrivKey = priv
	k.Address = priv.PubKey().Address()
	return nil
}

// Save persists the key to its file path.
func (k KeyFile) Save() error {
	if k.filePath == "" {
		return errors.New("cannot save wallet key: filePath not set")
	}

	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	return tmos.WriteFileAtomic(k.filePath, data, 0600)
}

// FilePath returns where the key is stored.
func (k KeyFile) FilePath() string { return k.filePath }

// GenKeyFile generates a new key bound to filePath. It is not saved.
func GenKeyFile(filePath string) *KeyFile {
	priv := ed25519.GenPrivKey()
	return &KeyFile{
		Address:  priv.PubKey().Address(),
		PrivKey:  priv,
		filePath: filePath,
	}
}

// LoadKeyFile reads a key saved by KeyFile.Save.
func LoadKeyFile(filePath string) (*KeyFile, error) {
	bz, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	k := &KeyFile{}
	if err := json.Unmarshal(bz, k); err != nil {
		return nil, fmt.Errorf("error reading wallet key from %v: %w", filePath, err)
	}
	k.filePath = filePath
	return k, nil
}

// LoadOrGenKeyFile loads the key at filePath or else generates and saves a
// new one.
func LoadOrGenKeyFile(filePath string) (*KeyFile, error) {
	if tmos.FileExists(filePath) {
		return LoadKeyFile(filePath)
	}
	k := GenKeyFile(filePath)
	if err := k.Save(); err != nil {
		return nil, err
	}
	return k, nil
}

//-------------------------------------------------------------------------------

// ApprovalKind names what the user is asked to approve.
type ApprovalKind string

const (
	ApproveConnect ApprovalKind = "connect"
	ApproveSign    ApprovalKind = "sign"
)

// ApprovalRequest is shown to the user before the key is used.
type ApprovalRequest struct {
	Kind    ApprovalKind
	Address string
	Summary string
}

// Approver decides an ApprovalRequest. It stands in for the confirmation
// dialog of a wallet extension.
type Approver func(ctx context.Context, req ApprovalRequest) (bool, error)

// AutoApprove approves everything.
func AutoApprove(context.Context, ApprovalRequest) (bool, error) { return true, nil }

// PromptApprover asks on out and reads a y/N answer from in.
func PromptApprover(in io.Reader, out io.Writer) Approver {
	var mtx sync.Mutex
	r := bufio.NewReader(in)
	return func(ctx context.Context, req ApprovalRequest) (bool, error) {
		mtx.Lock()
		defer mtx.Unlock()

		switch req.Kind {
		case ApproveConnect:
			fmt.Fprintf(out, "Allow this client to use account %s? [y/N] ", req.Address)
		default:
			fmt.Fprintf(out, "Sign with %s: %s? [y/N] ", ShortAddress(req.Address), req.Summary)
		}
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

//-------------------------------------------------------------------------------

// FileProvider is a Provider backed by a key file on the local disk. Every
// access and signature goes through its Approver.
type FileProvider struct {
	filePath string
	approve  Approver

	mtx        sync.Mutex
	key        *KeyFile
	authorized bool
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider returns a provider for the key at filePath. A nil approve
// rejects every request.
func NewFileProvider(filePath string, approve Approver) *FileProvider {
	if approve == nil {
		approve = func(context.Context, ApprovalRequest) (bool, error) { return false, nil }
	}
	return &FileProvider{filePath: filePath, approve: approve}
}

// Available reports whether the key file exists.
func (p *FileProvider) Available() bool {
	return tmos.FileExists(p.filePath)
}

func (p *FileProvider) IsConnected(context.Context) (bool, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.authorized, nil
}

func (p *FileProvider) GetPublicKey(ctx context.Context) (string, error) {
	key, err := p.loadKey()
	if err != nil {
		return "", err
	}

	ok, err := p.approve(ctx, ApprovalRequest{Kind: ApproveConnect, Address: key.Address})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUserRejected
	}

	p.mtx.Lock()
	p.authorized = true
	p.mtx.Unlock()
	return key.Address, nil
}

func (p *FileProvider) SignTransaction(ctx context.Context, encodedTx string, opts SignOptions) (string, error) {
	p.mtx.Lock()
	authorized := p.authorized
	p.mtx.Unlock()
	if !authorized {
		return "", errors.New("file wallet: access not granted")
	}

	key, err := p.loadKey()
	if err != nil {
		return "", err
	}
	if opts.Address != "" && opts.Address != key.Address {
		return "", fmt.Errorf("file wallet holds %s, not %s", key.Address, opts.Address)
	}

	t, err := types.ParseEnvelope(encodedTx)
	if err != nil {
		return "", err
	}
	tx, err := types.TransactionFrom(t)
	if err != nil {
		return "", err
	}
	if tx.SourceAccount != key.Address {
		return "", fmt.Errorf("file wallet holds %s, transaction is sourced from %s", key.Address, tx.SourceAccount)
	}

	ok, err := p.approve(ctx, ApprovalRequest{
		Kind:    ApproveSign,
		Address: key.Address,
		Summary: fmt.Sprintf("%s on %s (fee %d)", tx.Function, ShortAddress(tx.ContractID), tx.Fee),
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUserRejected
	}

	hash, err := t.Hash(opts.NetworkPassphrase)
	if err != nil {
		return "", err
	}
	sig, err := key.PrivKey.Sign(hash[:])
	if err != nil {
		return "", err
	}

	t, err = t.AddSignatureDecorated(xdr.DecoratedSignature{
		Hint:      key.PrivKey.PubKey().Hint(),
		Signature: sig,
	})
	if err != nil {
		return "", err
	}
	return t.Base64()
}

func (p *FileProvider) loadKey() (*KeyFile, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.key != nil {
		return p.key, nil
	}
	key, err := LoadKeyFile(p.filePath)
	if err != nil {
		return nil, err
	}
	p.key = key
	return key, nil
}
