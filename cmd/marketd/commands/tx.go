package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/energymarket/marketclient/contract"
	"github.com/energymarket/marketclient/market"
	"github.com/energymarket/marketclient/pipeline"
	"github.com/energymarket/marketclient/types"
)

type outcomeInfo struct {
	RunID     string `json:"run_id,omitempty"`
	Outcome   string `json:"outcome"`
	TxHash    string `json:"tx_hash,omitempty"`
	Ledger    uint32 `json:"ledger,omitempty"`
	Envelope  string `json:"envelope,omitempty"`
	CreatedID uint64 `json:"created_id,omitempty"`
}

// printOutcome reports o and returns o.Err. idFn, if not nil, decodes the id
// of the created object from a confirmed outcome.
func printOutcome(cmd *cobra.Command, o pipeline.Outcome, idFn func(pipeline.Outcome) (uint64, error)) error {
	info := outcomeInfo{
		RunID:    o.RunID,
		Outcome:  o.Kind.String(),
		TxHash:   o.TxHash,
		Ledger:   o.Ledger,
		Envelope: o.Envelope,
	}
	if o.Kind == pipeline.OutcomeConfirmed && idFn != nil {
		id, err := idFn(o)
		if err != nil {
			return err
		}
		info.CreatedID = id
	}
	if o.Kind == pipeline.OutcomeFailed {
		return o.Err
	}

	err := render(cmd, info, func(w io.Writer) {
		switch o.Kind {
		case pipeline.OutcomeSigned:
			fmt.Fprintln(w, o.Envelope)
		case pipeline.OutcomeSubmitted:
			fmt.Fprintf(w, "Submitted %s\n", o.TxHash)
		case pipeline.OutcomeConfirmed:
			fmt.Fprintf(w, "Confirmed %s in ledger %d\n", o.TxHash, o.Ledger)
			if info.CreatedID != 0 {
				fmt.Fprintf(w, "Created id %d\n", info.CreatedID)
			}
		case pipeline.OutcomeConfirmTimeout:
			fmt.Fprintf(w, "Submitted %s but it was not confirmed in time; check it again before resubmitting\n", o.TxHash)
		}
	})
	if err != nil {
		return err
	}
	if o.Kind == pipeline.OutcomeConfirmTimeout {
		return o.Err
	}
	return nil
}

func addWaitFlag(cmd *cobra.Command, wait *bool) {
	cmd.Flags().BoolVar(wait, "wait", false, "wait until the transaction is included in a ledger")
}

func addShowMarketFlag(cmd *cobra.Command, show *bool) {
	cmd.Flags().BoolVar(show, "show-market", false, "refresh and print the active offers after submitting")
}

// printRefreshedMarket prints the view the write hook refreshed. A refresh
// that failed was logged by the market client and prints nothing.
func printRefreshedMarket(cmd *cobra.Command, rt *runtime, show bool) error {
	if !show {
		return nil
	}
	snap := rt.view.Snapshot()
	if snap.Generation == 0 {
		return nil
	}
	return writeSnapshot(cmd.OutOrStdout(), snap, market.DefaultSortState())
}

func newCreateOfferCmd(a *app) *cobra.Command {
	var (
		amount, price, source, validFor string
		wait, signOnly, showMarket      bool
	)
	cmd := &cobra.Command{
		Use:   "create-offer",
		Short: "Offer energy for sale",
		Long: `Offer energy for sale from the connected wallet.

With --sign-only the signed transaction envelope is printed and nothing is
submitted.`,
		Example: "marketd create-offer --amount 100 --price 5 --source solar --valid-for 86400 --wait",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := contract.NewOfferRequest(amount, price, source, validFor)
			if err != nil {
				return err
			}
			rt, err := a.newRuntime(cmd.Context(), cmd, runtimeOptions{wait: wait, connectWallet: true, refreshView: showMarket})
			if err != nil {
				return err
			}
			a.logger.Info("creating offer", "offer", req)

			if signOnly {
				intent, err := rt.contract.CreateOfferIntent(rt.session.Identity(), req)
				if err != nil {
					return err
				}
				o, err := rt.pipeline.Sign(cmd.Context(), intent)
				if err != nil {
					return err
				}
				return printOutcome(cmd, o, nil)
			}

			o, err := rt.market.CreateOffer(cmd.Context(), req)
			if o.Kind == pipeline.OutcomeFailed {
				return err
			}
			if err := printOutcome(cmd, o, market.CreatedOfferID); err != nil {
				return err
			}
			return printRefreshedMarket(cmd, rt, showMarket)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "energy amount in kWh")
	cmd.Flags().StringVar(&price, "price", "", "price per kWh")
	cmd.Flags().StringVar(&source, "source", "", "energy source (solar, wind, hydro, biomass or other)")
	cmd.Flags().StringVar(&validFor, "valid-for", "", "seconds the offer stays valid (default one day)")
	cmd.Flags().BoolVar(&signOnly, "sign-only", false, "print the signed envelope instead of submitting it")
	addWaitFlag(cmd, &wait)
	addShowMarketFlag(cmd, &showMarket)
	return cmd
}

func newBuyCmd(a *app) *cobra.Command {
	var (
		amount           string
		wait, showMarket bool
	)
	cmd := &cobra.Command{
		Use:     "buy <offer-id>",
		Short:   "Buy energy from an offer",
		Example: "marketd buy 7 --amount 25 --wait",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := contract.NewTradeRequest(args[0], amount)
			if err != nil {
				return err
			}
			rt, err := a.newRuntime(cmd.Context(), cmd, runtimeOptions{wait: wait, connectWallet: true, refreshView: showMarket})
			if err != nil {
				return err
			}

			o, err := rt.market.ExecuteTrade(cmd.Context(), req)
			if o.Kind == pipeline.OutcomeFailed {
				return err
			}
			if err := printOutcome(cmd, o, market.CreatedTradeID); err != nil {
				return err
			}
			return printRefreshedMarket(cmd, rt, showMarket)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "energy amount in kWh")
	addWaitFlag(cmd, &wait)
	addShowMarketFlag(cmd, &showMarket)
	return cmd
}

func newCancelOfferCmd(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "cancel-offer <offer-id>",
		Short: "Withdraw one of your offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseQuantity("offer id", args[0])
			if err != nil {
				return err
			}
			rt, err := a.newRuntime(cmd.Context(), cmd, runtimeOptions{wait: wait, connectWallet: true})
			if err != nil {
				return err
			}

			o, err := rt.market.CancelOffer(cmd.Context(), id)
			if o.Kind == pipeline.OutcomeFailed || (o.Kind == pipeline.OutcomeConfirmed && err != nil) {
				return err
			}
			return printOutcome(cmd, o, nil)
		},
	}
	addWaitFlag(cmd, &wait)
	return cmd
}

var errScoreRange = errors.New("score must be between 0 and 100")

func newSetReputationCmd(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "set-reputation <address> <score>",
		Short: "Set the reputation score of an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil || score > 100 {
				return fmt.Errorf("%w, got %q", errScoreRange, args[1])
			}
			rt, err := a.newRuntime(cmd.Context(), cmd, runtimeOptions{wait: wait, connectWallet: true})
			if err != nil {
				return err
			}

			o, err := rt.market.UpdateReputation(cmd.Context(), args[0], score)
			if o.Kind == pipeline.OutcomeFailed || (o.Kind == pipeline.OutcomeConfirmed && err != nil) {
				return err
			}
			return printOutcome(cmd, o, nil)
		},
	}
	addWaitFlag(cmd, &wait)
	return cmd
}
