package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/energymarket/marketclient/market"
	"github.com/energymarket/marketclient/types"
	"github.com/energymarket/marketclient/wallet"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show marketplace totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.newRuntime(cmd.Context(), cmd, runtimeOptions{})
			if err != nil {
				return err
			}
			status, err := rt.market.MarketStatus(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, status, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Active offers:\t%d\n", status.ActiveOfferCount)
				fmt.Fprintf(tw, "Offers created:\t%d\n", status.TotalOffersCreated)
				fmt.Fprintf(tw, "Completed trades:\t%d\n", status.CompletedTradeCount)
				fmt.Fprintf(tw, "Energy traded (kWh):\t%d\n", status.TotalEnergyTraded)
				tw.Flush()
			})
		},
	}
}

func newOffersCmd(a *app) *cobra.Command {
	var (
		sortKey string
		desc    bool
		source  string
	)
	cmd := &cobra.Command{
		Use:   "offers",
		Short: "List active offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := market.ParseSortKey(sortKey)
			if err != nil {
				return err
			}
			dir := market.Ascending
			if desc {
				dir = market.Descending
			}

			rt, err := a.newRuntime(cmd.Context(), cmd, runtimeOptions{})
			if err != nil {
				return err
			}

			var offers []types.Offer
			if source != "" {
				src, err := types.ParseEnergySource(source)
				if err != nil {
					return err
				}
				offers, err = rt.market.OffersBySource(cmd.Context(), src)
				if err != nil {
					return err
				}
			} else {
				offers, err = rt.market.ActiveOffers(cmd.Context())
				if err != nil {
					return err
				}
			}

			now := time.Now()
			offers = market.Sort(offers, key, dir)
			return render(cmd, offers, func(w io.Writer) {
				writeOffers(w, offers, now)
			})
		},
	}
	cmd.Flags().StringVar(&sortKey, "sort", string(market.DefaultSortKey), "sort key (id, seller, energy, price, source or expiry)")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort in descending order")
	cmd.Flags().StringVar(&source, "source", "", "only list offers from this energy source")
	return cmd
}

func newOfferCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "offer <id>",
		Short: "Show a single offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseQuantity("offer id", args[0])
			if err != nil {
				return err
			}
			rt, err := a.newRuntime(cmd.Context(), cmd, runtimeOptions{})
			if err != nil {
				return err
			}
			offer, err := rt.market.Offer(cmd.Context(), id)
			if err != nil {
				return err
			}
			now := time.Now()
			return render(cmd, offer, func(w io.Writer) {
				writeOffers(w, []types.Offer{offer}, now)
			})
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile [address]",
		Short: "Show the trading profile of an address, or of the connected wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.newRuntime(cmd.Context(), cmd, runtimeOptions{connectWallet: len(args) == 0})
			if err != nil {
				return err
			}
			address := rt.session.Identity().PublicKey
			if len(args) == 1 {
				address = args[0]
			}

			profile, err := rt.market.UserProfile(cmd.Context(), address)
			if err != nil {
				return err
			}
			return render(cmd, profile, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Address:\t%s\n", profile.Address)
				fmt.Fprintf(tw, "Reputation:\t%d\n", profile.ReputationScore)
				fmt.Fprintf(tw, "Energy sold (kWh):\t%d\n", profile.TotalEnergySold)
				fmt.Fprintf(tw, "Energy bought (kWh):\t%d\n", profile.TotalEnergyBought)
				fmt.Fprintf(tw, "Active offers:\t%v\n", profile.ActiveOffers)
				fmt.Fprintf(tw, "Trades:\t%v\n", profile.TradeHistory)
				tw.Flush()
			})
		},
	}
}

func newTradeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trade <id>",
		Short: "Show a completed trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseQuantity("trade id", args[0])
			if err != nil {
				return err
			}
			rt, err := a.newRuntime(cmd.Context(), cmd, runtimeOptions{})
			if err != nil {
				return err
			}
			trade, err := rt.market.Trade(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(cmd, trade, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Trade:\t%d\n", trade.ID)
				fmt.Fprintf(tw, "Offer:\t%d\n", trade.OfferID)
				fmt.Fprintf(tw, "Seller:\t%s\n", trade.Seller)
				fmt.Fprintf(tw, "Buyer:\t%s\n", trade.Buyer)
				fmt.Fprintf(tw, "Energy (kWh):\t%d\n", trade.EnergyAmount)
				fmt.Fprintf(tw, "Total price:\t%d\n", trade.TotalPrice)
				fmt.Fprintf(tw, "Source:\t%s\n", trade.Source)
				fmt.Fprintf(tw, "Time:\t%s\n", trade.Time.UTC().Format(time.RFC3339))
				tw.Flush()
			})
		},
	}
}

// writeOffers prints offers as a table in the given order.
func writeOffers(w io.Writer, offers []types.Offer, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSELLER\tENERGY\tPRICE\tTOTAL\tSOURCE\tEXPIRES\tSTATUS")
	for _, o := range offers {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			o.ID,
			wallet.ShortAddress(o.Seller),
			o.EnergyAmount,
			o.PricePerUnit,
			o.TotalPrice(),
			o.Source,
			expiresIn(o.Expiry, now),
			o.StatusAt(now),
		)
	}
	tw.Flush()
}

func expiresIn(expiry, now time.Time) string {
	d := expiry.Sub(now)
	if d <= 0 {
		return "expired"
	}
	return d.Truncate(time.Second).String()
}
