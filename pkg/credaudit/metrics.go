package credaudit

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics receives run statistics. The executor reports through this
// interface; wiring it to a concrete monitoring sink is the caller's
// concern.
type Metrics interface {
	RecordRun(stats CredentialStats, duration time.Duration)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

// RecordRun implements Metrics by doing nothing.
func (NopMetrics) RecordRun(CredentialStats, time.Duration) {}

// Collector exposes run statistics as Prometheus metrics.
type Collector struct {
	audited     prometheus.Counter
	kept        prometheus.Counter
	disabled    prometheus.Counter
	deleted     prometheus.Counter
	failed      prometheus.Counter
	runDuration prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		audited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credaudit_credentials_audited_total",
			Help: "Total number of credentials considered across runs.",
		}),
		kept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credaudit_credentials_kept_total",
			Help: "Total number of credentials left untouched.",
		}),
		disabled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credaudit_credentials_disabled_total",
			Help: "Total number of credentials disabled.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credaudit_credentials_deleted_total",
			Help: "Total number of credentials deleted.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credaudit_actions_failed_total",
			Help: "Total number of failed provider actions.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "credaudit_run_duration_seconds",
			Help:    "Duration of audit runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.audited,
		c.kept,
		c.disabled,
		c.deleted,
		c.failed,
		c.runDuration,
	)

	return c
}

// RecordRun implements Metrics.
func (c *Collector) RecordRun(stats CredentialStats, duration time.Duration) {
	c.audited.Add(float64(stats.Total))
	c.kept.Add(float64(stats.Kept))
	c.disabled.Add(float64(stats.Disabled))
	c.deleted.Add(float64(stats.Deleted))
	c.failed.Add(float64(stats.Failed))
	c.runDuration.Observe(duration.Seconds())
}

// MetricsHandler returns an HTTP handler serving the gatherer's metrics
// in Prometheus scrape format.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
