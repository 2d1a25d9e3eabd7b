package pipeline

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const MetricsSubsystem = "pipeline"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of finished runs, by operation and outcome.
	Runs metrics.Counter
	// Number of failed runs, by operation and failing stage.
	Failures metrics.Counter
	// Time from Built to the end of the run, in seconds.
	RunDurationSeconds metrics.Histogram
	// Time spent waiting for confirmation, in seconds.
	ConfirmDurationSeconds metrics.Histogram
	// Number of writes rejected because the action was busy.
	BusyRejections metrics.Counter
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "runs",
			Help:      "Number of finished pipeline runs.",
		}, []string{"operation", "outcome"}),
		Failures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "failures",
			Help:      "Number of failed pipeline runs by stage.",
		}, []string{"operation", "stage"}),
		RunDurationSeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs.",
			Buckets:   stdprometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"operation"}),
		ConfirmDurationSeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "confirm_duration_seconds",
			Help:      "Time waited for a submitted transaction to be included.",
			Buckets:   stdprometheus.LinearBuckets(1, 3, 11),
		}, []string{}),
		BusyRejections: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "busy_rejections",
			Help:      "Number of writes rejected while the same action was in flight.",
		}, []string{"operation"}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Runs:                   discard.NewCounter(),
		Failures:               discard.NewCounter(),
		RunDurationSeconds:     discard.NewHistogram(),
		ConfirmDurationSeconds: discard.NewHistogram(),
		BusyRejections:         discard.NewCounter(),
	}
}
