// Package contract knows the call surface of the energy marketplace
// contract: how domain values become call arguments, how intents are built
// and how results decode back into domain values.
package contract

import (
	"errors"
	"fmt"
	"time"

	"github.com/energymarket/marketclient/crypto/ed25519"
	"github.com/energymarket/marketclient/types"
	"github.com/energymarket/marketclient/wallet"
	"github.com/stellar/go/strkey"
)

// Contract operations.
const (
	OpGetMarketStatus  = "get_market_status"
	OpGetActiveOffers  = "get_active_offers"
	OpGetOffer         = "get_offer"
	OpGetOffersByType  = "get_offers_by_type"
	OpGetUserProfile   = "get_user_profile"
	OpGetTrade         = "get_trade"
	OpCreateOffer      = "create_offer"
	OpExecuteTrade     = "execute_trade"
	OpCancelOffer      = "cancel_offer"
	OpUpdateReputation = "update_reputation"
)

// Config is fixed per deployment environment.
type Config struct {
	ContractID        string
	NetworkPassphrase string
	BaseFee           uint32
	TxTimeout         time.Duration
}

// ValidateBasic performs basic validation.
func (cfg Config) ValidateBasic() error {
	if raw, err := strkey.Decode(strkey.VersionByteContract, cfg.ContractID); err != nil || len(raw) != 32 {
		return fmt.Errorf("invalid contract id %q", cfg.ContractID)
	}
	if cfg.NetworkPassphrase == "" {
		return errors.New("network passphrase is empty")
	}
	if cfg.BaseFee == 0 {
		return errors.New("base fee must be positive")
	}
	if cfg.TxTimeout <= 0 {
		return errors.New("tx timeout must be positive")
	}
	return nil
}

// Client builds intents against one deployed contract. It holds no mutable
// state and is safe for concurrent use.
type Client struct {
	cfg Config

	// newSource returns the disposable account used for read queries.
	newSource func() string
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:       cfg,
		newSource: randomAccount,
	}, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.cfg }

func randomAccount() string {
	return ed25519.GenPrivKey().PubKey().Address()
}

// BuildReadQuery returns a read intent for operation. The source is a
// freshly generated account that never holds funds nor signs: read intents
// are only simulated.
func (c *Client) BuildReadQuery(operation string, args ...types.Value) (types.TransactionIntent, error) {
	return types.NewReadIntent(types.IntentParams{
		ContractID:        c.cfg.ContractID,
		Operation:         operation,
		Args:              args,
		Source:            c.newSource(),
		Fee:               c.cfg.BaseFee,
		Timeout:           c.cfg.TxTimeout,
		NetworkPassphrase: c.cfg.NetworkPassphrase,
	})
}

// BuildWriteIntent returns a write intent sourced from the connected
// identity. It fails with types.ErrNotConnected if there is none.
func (c *Client) BuildWriteIntent(id wallet.Identity, operation string, args ...types.Value) (types.TransactionIntent, error) {
	if !id.Connected() {
		return types.TransactionIntent{}, types.ErrNotConnected
	}
	return types.NewWriteIntent(types.IntentParams{
		ContractID:        c.cfg.ContractID,
		Operation:         operation,
		Args:              args,
		Source:            id.PublicKey,
		Fee:               c.cfg.BaseFee,
		Timeout:           c.cfg.TxTimeout,
		NetworkPassphrase: c.cfg.NetworkPassphrase,
	})
}

//-------------------------------------------------------------------------------
// Read queries

func (c *Client) MarketStatusQuery() (types.TransactionIntent, error) {
	return c.BuildReadQuery(OpGetMarketStatus)
}

func (c *Client) ActiveOffersQuery() (types.TransactionIntent, error) {
	return c.BuildReadQuery(OpGetActiveOffers)
}

func (c *Client) OfferQuery(id uint64) (types.TransactionIntent, error) {
	return c.BuildReadQuery(OpGetOffer, types.U64Value(id))
}

func (c *Client) OffersBySourceQuery(src types.EnergySource) (types.TransactionIntent, error) {
	v, err := EnergySourceValue(src)
	if err != nil {
		return types.TransactionIntent{}, err
	}
	return c.BuildReadQuery(OpGetOffersByType, v)
}

func (c *Client) UserProfileQuery(address string) (types.TransactionIntent, error) {
	if _, err := ed25519.PubKeyFromAddress(address); err != nil {
		return types.TransactionIntent{}, err
	}
	user, err := types.AddressValue(address)
	if err != nil {
		return types.TransactionIntent{}, err
	}
	return c.BuildReadQuery(OpGetUserProfile, user)
}

func (c *Client) TradeQuery(id uint64) (types.TransactionIntent, error) {
	return c.BuildReadQuery(OpGetTrade, types.U64Value(id))
}

//-------------------------------------------------------------------------------
// Write intents

// caller returns the address argument of the connected identity.
func caller(id wallet.Identity) (types.Value, error) {
	if !id.Connected() {
		return types.Value{}, types.ErrNotConnected
	}
	return types.AddressValue(id.PublicKey)
}

// CreateOfferIntent lists energy for sale by the connected identity.
func (c *Client) CreateOfferIntent(id wallet.Identity, req OfferRequest) (types.TransactionIntent, error) {
	if err := req.ValidateBasic(); err != nil {
		return types.TransactionIntent{}, err
	}
	src, err := EnergySourceValue(req.Source)
	if err != nil {
		return types.TransactionIntent{}, err
	}
	seller, err := caller(id)
	if err != nil {
		return types.TransactionIntent{}, err
	}
	return c.BuildWriteIntent(id, OpCreateOffer,
		seller,
		types.U64Value(req.EnergyAmount),
		types.U64Value(req.PricePerUnit),
		src,
		types.U64Value(uint64(req.ValidFor/time.Second)),
	)
}

// ExecuteTradeIntent buys amount kWh of an offer for the connected identity.
func (c *Client) ExecuteTradeIntent(id wallet.Identity, req TradeRequest) (types.TransactionIntent, error) {
	if err := req.ValidateBasic(); err != nil {
		return types.TransactionIntent{}, err
	}
	buyer, err := caller(id)
	if err != nil {
		return types.TransactionIntent{}, err
	}
	return c.BuildWriteIntent(id, OpExecuteTrade,
		buyer,
		types.U64Value(req.OfferID),
		types.U64Value(req.EnergyAmount),
	)
}

// CancelOfferIntent withdraws an offer of the connected identity.
func (c *Client) CancelOfferIntent(id wallet.Identity, offerID uint64) (types.TransactionIntent, error) {
	if offerID == 0 {
		return types.TransactionIntent{}, &types.QuantityError{Field: "offer id", Input: "0"}
	}
	seller, err := caller(id)
	if err != nil {
		return types.TransactionIntent{}, err
	}
	return c.BuildWriteIntent(id, OpCancelOffer, seller, types.U64Value(offerID))
}

// MaxReputation is the upper bound the contract accepts for a score.
const MaxReputation = 100

// UpdateReputationIntent sets the reputation score of user, signed by the
// connected identity acting as admin.
func (c *Client) UpdateReputationIntent(id wallet.Identity, user string, score uint64) (types.TransactionIntent, error) {
	if score > MaxReputation {
		return types.TransactionIntent{}, fmt.Errorf("%w: reputation score %d exceeds %d", types.ErrInvalidQuantity, score, MaxReputation)
	}
	if _, err := ed25519.PubKeyFromAddress(user); err != nil {
		return types.TransactionIntent{}, err
	}
	admin, err := caller(id)
	if err != nil {
		return types.TransactionIntent{}, err
	}
	target, err := types.AddressValue(user)
	if err != nil {
		return types.TransactionIntent{}, err
	}
	return c.BuildWriteIntent(id, OpUpdateReputation, admin, target, types.U64Value(score))
}
