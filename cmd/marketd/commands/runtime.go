package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/energymarket/marketclient/config"
	"github.com/energymarket/marketclient/contract"
	"github.com/energymarket/marketclient/ledger/soroban"
	"github.com/energymarket/marketclient/market"
	"github.com/energymarket/marketclient/pipeline"
	"github.com/energymarket/marketclient/types"
	"github.com/energymarket/marketclient/wallet"
)

// runtime holds the clients a command talks to.
type runtime struct {
	contract *contract.Client
	session  *wallet.Session
	pipeline *pipeline.Pipeline
	market   *market.Client
	view     *market.View
}

type runtimeOptions struct {
	wait          bool
	metrics       *pipeline.Metrics
	viewMetrics   *market.Metrics
	connectWallet bool
	// refreshView refreshes the view after every offer or trade the
	// runtime submits.
	refreshView bool
}

// newRuntime wires the ledger, contract, wallet and pipeline clients
// according to the configuration. The wallet is only contacted when
// opts.connectWallet is set.
func (a *app) newRuntime(ctx context.Context, cmd *cobra.Command, opts runtimeOptions) (*runtime, error) {
	conf := a.conf
	if err := conf.Contract.Configured(); err != nil {
		return nil, err
	}

	lc, err := soroban.New(conf.Ledger.RPCAddress, conf.Ledger.Timeout, a.logger.With("module", "ledger"),
		soroban.WithRateLimit(conf.Ledger.RateLimit, conf.Ledger.RateBurst))
	if err != nil {
		return nil, err
	}

	cc, err := contract.NewClient(contract.Config{
		ContractID:        conf.Contract.ContractID,
		NetworkPassphrase: conf.Contract.NetworkPassphrase,
		BaseFee:           conf.Contract.BaseFee,
		TxTimeout:         conf.Contract.TxTimeout,
	})
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cmd, conf)
	if err != nil {
		return nil, err
	}
	session := wallet.NewSession(provider, a.logger.With("module", "wallet"))

	if opts.connectWallet {
		if err := connect(ctx, session); err != nil {
			return nil, err
		}
	}

	metrics := opts.metrics
	if metrics == nil {
		metrics = pipeline.NopMetrics()
	}
	pl := pipeline.New(lc, session,
		pipeline.WithLogger(a.logger.With("module", "pipeline")),
		pipeline.WithMetrics(metrics),
		pipeline.WithConfirmTimeout(conf.Market.ConfirmTimeout),
		pipeline.WithPollInterval(conf.Market.ConfirmPollInterval),
	)

	rt := &runtime{
		contract: cc,
		session:  session,
		pipeline: pl,
	}
	clientOptions := []market.ClientOption{
		market.WithConfirmation(opts.wait),
		market.WithHydrateConcurrency(conf.Market.HydrateConcurrency),
		market.WithClientLogger(a.logger.With("module", "market")),
	}
	if opts.refreshView {
		clientOptions = append(clientOptions, market.WithWriteHook(func(ctx context.Context) error {
			return rt.view.OnOfferCreated(ctx)
		}))
	}
	rt.market = market.NewClient(cc, pl, session, clientOptions...)

	viewMetrics := opts.viewMetrics
	if viewMetrics == nil {
		viewMetrics = market.NopMetrics()
	}
	rt.view = market.NewView(rt.market, a.logger.With("module", "view"),
		market.WithPollInterval(conf.Market.PollInterval),
		market.WithViewMetrics(viewMetrics),
	)
	return rt, nil
}

func newProvider(cmd *cobra.Command, conf *config.Config) (wallet.Provider, error) {
	switch conf.Wallet.Provider {
	case config.WalletProviderRemote:
		return wallet.NewRemoteProvider(conf.Wallet.RemoteAddress, conf.Wallet.RemoteTimeout)
	case config.WalletProviderFile:
		approve := wallet.PromptApprover(cmd.InOrStdin(), cmd.ErrOrStderr())
		if conf.Wallet.AutoApprove {
			approve = wallet.AutoApprove
		}
		return wallet.NewFileProvider(conf.WalletKeyFile(), approve), nil
	default:
		return nil, fmt.Errorf("unknown wallet provider %q", conf.Wallet.Provider)
	}
}

// connect restores an existing authorization, and asks for a new one if
// there is none.
func connect(ctx context.Context, session *wallet.Session) error {
	restored, err := session.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restoring wallet session: %w", err)
	}
	if restored {
		return nil
	}
	if _, err := session.Connect(ctx); err != nil {
		if errors.Is(err, types.ErrWalletUnavailable) {
			return fmt.Errorf("%w: run `marketd init` or `marketd gen-wallet --save`, or configure a remote wallet", err)
		}
		return err
	}
	return nil
}
