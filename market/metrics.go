package market

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const MetricsSubsystem = "market"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of refreshes, by result: ok, error or discarded.
	Refreshes metrics.Counter
	// Number of active offers in the cache.
	ActiveOffers metrics.Gauge
	// Number of offers dropped from a refresh because they expired.
	ExpiredOffers metrics.Counter
	// Duration of a refresh, in seconds.
	RefreshDurationSeconds metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Refreshes: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "refreshes",
			Help:      "Number of market refreshes by result.",
		}, []string{"result"}),
		ActiveOffers: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "active_offers",
			Help:      "Number of active offers in the local cache.",
		}, []string{}),
		ExpiredOffers: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "expired_offers",
			Help:      "Number of offers dropped because they expired.",
		}, []string{}),
		RefreshDurationSeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of market refreshes.",
			Buckets:   stdprometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Refreshes:              discard.NewCounter(),
		ActiveOffers:           discard.NewGauge(),
		ExpiredOffers:          discard.NewCounter(),
		RefreshDurationSeconds: discard.NewHistogram(),
	}
}
