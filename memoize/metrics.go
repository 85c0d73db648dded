/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze how (effectively or not)
// a memoized function and its rate limit are used.
type MetricsCollector interface {
	// SetAmount sets the total number of entries in the cache.
	SetAmount(int)

	// IncHits increments the total number of calls served from the cache.
	IncHits()

	// IncMisses increments the total number of calls not found in the cache.
	IncMisses()

	// AddEvictions increments the total number of evicted entries.
	AddEvictions(int)

	// IncRateLimitWaits increments the total number of invocations delayed by the rate limit.
	IncRateLimitWaits()

	// IncRateLimitRejects increments the total number of invocations rejected by the rate limit.
	IncRateLimitRejects()
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for a memoized function.
type PrometheusMetrics struct {
	EntriesAmount         *prometheus.GaugeVec
	HitsTotal             *prometheus.CounterVec
	MissesTotal           *prometheus.CounterVec
	EvictionsTotal        *prometheus.CounterVec
	RateLimitWaitsTotal   *prometheus.CounterVec
	RateLimitRejectsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	makeCounterVec := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        name,
				Help:        help,
				ConstLabels: opts.ConstLabels,
			},
			opts.CurriedLabelNames,
		)
	}

	entriesAmount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "memoize_cache_entries_amount",
			Help:        "Total number of entries in the cache.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		EntriesAmount: entriesAmount,
		HitsTotal: makeCounterVec("memoize_cache_hits_total",
			"Number of calls served from the cache."),
		MissesTotal: makeCounterVec("memoize_cache_misses_total",
			"Number of calls not found in the cache."),
		EvictionsTotal: makeCounterVec("memoize_cache_evictions_total",
			"Number of evicted entries."),
		RateLimitWaitsTotal: makeCounterVec("memoize_rate_limit_waits_total",
			"Number of invocations delayed by the rate limit."),
		RateLimitRejectsTotal: makeCounterVec("memoize_rate_limit_rejects_total",
			"Number of invocations rejected by the rate limit."),
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		EntriesAmount:         pm.EntriesAmount.MustCurryWith(labels),
		HitsTotal:             pm.HitsTotal.MustCurryWith(labels),
		MissesTotal:           pm.MissesTotal.MustCurryWith(labels),
		EvictionsTotal:        pm.EvictionsTotal.MustCurryWith(labels),
		RateLimitWaitsTotal:   pm.RateLimitWaitsTotal.MustCurryWith(labels),
		RateLimitRejectsTotal: pm.RateLimitRejectsTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.EntriesAmount,
		pm.HitsTotal,
		pm.MissesTotal,
		pm.EvictionsTotal,
		pm.RateLimitWaitsTotal,
		pm.RateLimitRejectsTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.EntriesAmount)
	prometheus.Unregister(pm.HitsTotal)
	prometheus.Unregister(pm.MissesTotal)
	prometheus.Unregister(pm.EvictionsTotal)
	prometheus.Unregister(pm.RateLimitWaitsTotal)
	prometheus.Unregister(pm.RateLimitRejectsTotal)
}

// SetAmount sets the total number of entries in the cache.
func (pm *PrometheusMetrics) SetAmount(amount int) {
	pm.EntriesAmount.With(nil).Set(float64(amount))
}

// IncHits increments the total number of calls served from the cache.
func (pm *PrometheusMetrics) IncHits() {
	pm.HitsTotal.With(nil).Inc()
}

// IncMisses increments the total number of calls not found in the cache.
func (pm *PrometheusMetrics) IncMisses() {
	pm.MissesTotal.With(nil).Inc()
}

// AddEvictions increments the total number of evicted entries.
func (pm *PrometheusMetrics) AddEvictions(n int) {
	pm.EvictionsTotal.With(nil).Add(float64(n))
}

// IncRateLimitWaits increments the total number of invocations delayed by the rate limit.
func (pm *PrometheusMetrics) IncRateLimitWaits() {
	pm.RateLimitWaitsTotal.With(nil).Inc()
}

// IncRateLimitRejects increments the total number of invocations rejected by the rate limit.
func (pm *PrometheusMetrics) IncRateLimitRejects() {
	pm.RateLimitRejectsTotal.With(nil).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(int)        {}
func (disabledMetrics) IncHits()             {}
func (disabledMetrics) IncMisses()           {}
func (disabledMetrics) AddEvictions(int)     {}
func (disabledMetrics) IncRateLimitWaits()   {}
func (disabledMetrics) IncRateLimitRejects() {}

var disabledMetricsCollector = disabledMetrics{}
