package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/energymarket/marketclient/libs/cli"
	"github.com/energymarket/marketclient/libs/log"
	"github.com/energymarket/marketclient/market"
	"github.com/energymarket/marketclient/market/feed"
	"github.com/energymarket/marketclient/pipeline"
	"github.com/energymarket/marketclient/types"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		sortKey string
		desc    bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the active offers as they change",
		Long: `Poll the marketplace and print the active offers whenever they change.

If [feed] laddr is set, snapshots are also served over HTTP and websocket.
If [instrumentation] prometheus is set, metrics are served on
prometheus-listen-addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := market.ParseSortKey(sortKey)
			if err != nil {
				return err
			}
			st := market.SortState{Key: key, Direction: market.Ascending}
			if desc {
				st.Direction = market.Descending
			}
			return a.watch(cmd, st)
		},
	}
	cmd.Flags().StringVar(&sortKey, "sort", string(market.DefaultSortKey), "sort key (id, seller, energy, price, source or expiry)")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort in descending order")
	return cmd
}

func (a *app) watch(cmd *cobra.Command, st market.SortState) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	conf := a.conf
	pipelineMetrics, marketMetrics := pipeline.NopMetrics(), market.NopMetrics()
	if conf.Instrumentation.Prometheus {
		pipelineMetrics = pipeline.PrometheusMetrics(conf.Instrumentation.Namespace)
		marketMetrics = market.PrometheusMetrics(conf.Instrumentation.Namespace)

		srv := startPrometheusServer(conf.Instrumentation.PrometheusListenAddr, a.logger)
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := srv.Shutdown(sctx); err != nil {
				a.logger.Error("Prometheus HTTP server Shutdown", "err", err)
			}
		}()
	}

	rt, err := a.newRuntime(ctx, cmd, runtimeOptions{metrics: pipelineMetrics, viewMetrics: marketMetrics})
	if err != nil {
		return err
	}

	view := rt.view
	updates, unsubscribe := view.Subscribe()
	defer unsubscribe()

	if err := view.Start(ctx); err != nil {
		return err
	}
	defer view.Stop()

	if conf.Feed.ListenAddress != "" {
		srv := feed.NewServer(view, conf.Feed, a.logger.With("module", "feed"))
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop()
		a.logger.Info("serving market feed", "addr", srv.Addr())
	}

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeSnapshot(cmd.OutOrStdout(), snap, st); err != nil {
				return err
			}
		case <-ctx.Done():
			if err := view.LastError(); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("last refresh failed", "err", err)
			}
			return nil
		}
	}
}

func writeSnapshot(w io.Writer, snap market.Snapshot, st market.SortState) error {
	offers := snap.Sorted(st)
	if viper.GetString(cli.OutputFlag) == outputJSON {
		bz, err := json.Marshal(struct {
			Generation uint64        `json:"generation"`
			UpdatedAt  time.Time     `json:"updated_at"`
			Offers     []types.Offer `json:"offers"`
		}{snap.Generation, snap.UpdatedAt, offers})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(bz))
		return err
	}

	fmt.Fprintf(w, "\n%s  generation %d  %d active offers  %d kWh traded\n",
		snap.UpdatedAt.Format(time.RFC3339), snap.Generation, len(offers), snap.Status.TotalEnergyTraded)
	writeOffers(w, offers, snap.UpdatedAt)
	return nil
}

// startPrometheusServer starts a Prometheus HTTP server, listening for metrics
// collectors on addr.
func startPrometheusServer(addr string, logger log.Logger) *http.Server {
	srv := &http.Server{
		Addr: addr,
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{},
			),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			// Error starting or closing listener:
			logger.Error("Prometheus HTTP server ListenAndServe", "err", err)
		}
	}()
	return srv
}
