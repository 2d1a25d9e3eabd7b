// Package market is the data access layer and the cached view of the energy
// marketplace. Reads are simulated through the transaction pipeline and
// decoded into domain values; writes go through the connected wallet.
package market

import (
	"context"
	"fmt"
	"strconv"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/energymarket/marketclient/contract"
	"github.com/energymarket/marketclient/libs/log"
	"github.com/energymarket/marketclient/pipeline"
	"github.com/energymarket/marketclient/types"
	"github.com/energymarket/marketclient/wallet"
)

// DefaultHydrateConcurrency bounds concurrent get_offer calls when active
// offer ids are resolved to offers.
const DefaultHydrateConcurrency = 4

// Pipeline is the part of the transaction pipeline the market client uses.
type Pipeline interface {
	pipeline.Runner
	RunAndConfirm(ctx context.Context, intent types.TransactionIntent) (pipeline.Outcome, error)
}

// Identity returns the wallet identity writes are made from.
type Identity interface {
	Identity() wallet.Identity
}

// Client reads and writes marketplace state.
type Client struct {
	contract *contract.Client
	pipeline Pipeline
	identity Identity

	logger      log.Logger
	confirm     bool
	concurrency int64
	writeHooks  []func(context.Context) error

	// Trades never change once executed.
	trades *cache.Cache
}

type ClientOption func(*Client)

// WithConfirmation makes write operations wait for the ledger to include
// the transaction.
func WithConfirmation(confirm bool) ClientOption {
	return func(c *Client) { c.confirm = confirm }
}

// WithHydrateConcurrency sets the number of offers fetched in parallel.
func WithHydrateConcurrency(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = int64(n)
		}
	}
}

// WithWriteHook registers fn to run after a create_offer or execute_trade
// write reached the ledger, whether or not it was confirmed yet. A failing
// hook is logged and does not change the write's outcome.
func WithWriteHook(fn func(context.Context) error) ClientOption {
	return func(c *Client) { c.writeHooks = append(c.writeHooks, fn) }
}

func WithClientLogger(logger log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient returns a Client. identity may be nil for a read-only client.
func NewClient(cc *contract.Client, p Pipeline, identity Identity, options ...ClientOption) *Client {
	c := &Client{
		contract:    cc,
		pipeline:    p,
		identity:    identity,
		logger:      log.NewNopLogger(),
		concurrency: DefaultHydrateConcurrency,
		trades:      cache.New(cache.NoExpiration, 0),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) query(ctx context.Context, intent types.TransactionIntent, err error) (types.Value, error) {
	if err != nil {
		return types.Value{}, err
	}
	outcome, err := c.pipeline.Run(ctx, intent)
	if err != nil {
		return types.Value{}, err
	}
	return outcome.Effect, nil
}

// MarketStatus returns the aggregate market statistics.
func (c *Client) MarketStatus(ctx context.Context) (types.MarketStatus, error) {
	intent, err := c.contract.MarketStatusQuery()
	v, err := c.query(ctx, intent, err)
	if err != nil {
		return types.MarketStatus{}, err
	}
	return contract.DecodeMarketStatus(v)
}

// ActiveOfferIDs returns the ids of all offers the contract considers
// active.
func (c *Client) ActiveOfferIDs(ctx context.Context) ([]uint64, error) {
	intent, err := c.contract.ActiveOffersQuery()
	v, err := c.query(ctx, intent, err)
	if err != nil {
		return nil, err
	}
	return contract.DecodeIDs(v)
}

// ActiveOffers returns every active offer in id order. Either all offers are
// returned or none.
func (c *Client) ActiveOffers(ctx context.Context) ([]types.Offer, error) {
	ids, err := c.ActiveOfferIDs(ctx)
	if err != nil {
		return nil, err
	}
	return c.Offers(ctx, ids)
}

// Offers fetches the offers with the given ids, preserving their order. It
// fails if any single offer fails.
func (c *Client) Offers(ctx context.Context, ids []uint64) ([]types.Offer, error) {
	offers := make([]types.Offer, len(ids))
	sem := semaphore.NewWeighted(c.concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		i, id := i, id
		g.Go(func() error {
			defer sem.Release(1)
			offer, err := c.Offer(gctx, id)
			if err != nil {
				return fmt.Errorf("offer %d: %w", id, err)
			}
			offers[i] = offer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return offers, nil
}

// Offer returns a single offer.
func (c *Client) Offer(ctx context.Context, id uint64) (types.Offer, error) {
	intent, err := c.contract.OfferQuery(id)
	v, err := c.query(ctx, intent, err)
	if err != nil {
		return types.Offer{}, err
	}
	return contract.DecodeOffer(v)
}

// OffersBySource returns the active offers of one energy source.
func (c *Client) OffersBySource(ctx context.Context, src types.EnergySource) ([]types.Offer, error) {
	intent, err := c.contract.OffersBySourceQuery(src)
	v, err := c.query(ctx, intent, err)
	if err != nil {
		return nil, err
	}
	ids, err := contract.DecodeIDs(v)
	if err != nil {
		return nil, err
	}
	return c.Offers(ctx, ids)
}

// UserProfile returns the trading record of address.
func (c *Client) UserProfile(ctx context.Context, address string) (types.UserProfile, error) {
	intent, err := c.contract.UserProfileQuery(address)
	v, err := c.query(ctx, intent, err)
	if err != nil {
		return types.UserProfile{}, err
	}
	return contract.DecodeUserProfile(v)
}

// Trade returns a completed trade.
func (c *Client) Trade(ctx context.Context, id uint64) (types.Trade, error) {
	key := strconv.FormatUint(id, 10)
	if t, ok := c.trades.Get(key); ok {
		return t.(types.Trade), nil
	}

	intent, err := c.contract.TradeQuery(id)
	v, err := c.query(ctx, intent, err)
	if err != nil {
		return types.Trade{}, err
	}
	trade, err := contract.DecodeTrade(v)
	if err != nil {
		return types.Trade{}, err
	}
	c.trades.SetDefault(key, trade)
	return trade, nil
}

func (c *Client) currentIdentity() wallet.Identity {
	if c.identity == nil {
		return wallet.Identity{}
	}
	return c.identity.Identity()
}

func (c *Client) write(ctx context.Context, intent types.TransactionIntent, err error) (pipeline.Outcome, error) {
	if err != nil {
		return pipeline.Outcome{Kind: pipeline.OutcomeFailed, Err: err}, err
	}
	if c.confirm {
		return c.pipeline.RunAndConfirm(ctx, intent)
	}
	return c.pipeline.Run(ctx, intent)
}

// afterWrite runs the write hooks when o reached the ledger.
func (c *Client) afterWrite(ctx context.Context, o pipeline.Outcome) {
	switch o.Kind {
	case pipeline.OutcomeSubmitted, pipeline.OutcomeConfirmed, pipeline.OutcomeConfirmTimeout:
	default:
		return
	}
	for _, fn := range c.writeHooks {
		if err := fn(ctx); err != nil {
			c.logger.Error("write hook failed", "hash", o.TxHash, "err", err)
		}
	}
}

// ack checks the void result of a confirmed write.
func ack(o pipeline.Outcome, err error) (pipeline.Outcome, error) {
	if err != nil || o.Kind != pipeline.OutcomeConfirmed {
		return o, err
	}
	if err := contract.DecodeAck(o.Effect); err != nil {
		return o, err
	}
	return o, nil
}

// CreateOffer publishes a new offer from the connected wallet. When the
// write is confirmed, the id of the new offer can be read with CreatedOfferID.
func (c *Client) CreateOffer(ctx context.Context, req contract.OfferRequest) (pipeline.Outcome, error) {
	intent, err := c.contract.CreateOfferIntent(c.currentIdentity(), req)
	o, err := c.write(ctx, intent, err)
	c.afterWrite(ctx, o)
	return o, err
}

// ExecuteTrade buys energy from an offer. When the write is confirmed, the
// id of the trade can be read with CreatedTradeID.
func (c *Client) ExecuteTrade(ctx context.Context, req contract.TradeRequest) (pipeline.Outcome, error) {
	intent, err := c.contract.ExecuteTradeIntent(c.currentIdentity(), req)
	o, err := c.write(ctx, intent, err)
	c.afterWrite(ctx, o)
	return o, err
}

// CancelOffer withdraws one of the connected wallet's offers.
func (c *Client) CancelOffer(ctx context.Context, offerID uint64) (pipeline.Outcome, error) {
	intent, err := c.contract.CancelOfferIntent(c.currentIdentity(), offerID)
	return ack(c.write(ctx, intent, err))
}

// UpdateReputation sets the reputation score of user.
func (c *Client) UpdateReputation(ctx context.Context, user string, score uint64) (pipeline.Outcome, error) {
	intent, err := c.contract.UpdateReputationIntent(c.currentIdentity(), user, score)
	return ack(c.write(ctx, intent, err))
}

// CreatedOfferID decodes the offer id returned by a create_offer write.
func CreatedOfferID(o pipeline.Outcome) (uint64, error) {
	return contract.DecodeID(o.Effect)
}

// CreatedTradeID decodes the trade id returned by an execute_trade write.
func CreatedTradeID(o pipeline.Outcome) (uint64, error) {
	return contract.DecodeID(o.Effect)
}
