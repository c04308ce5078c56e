// Package metrics holds the Prometheus collectors shared by the aggregation
// engine. Collectors are registered on the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamAttempts counts every HTTP attempt made by the retrying client,
	// by outcome ("ok", "retryable", "permanent", "network").
	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_aggregator_upstream_attempts_total",
			Help: "Upstream HTTP attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	// CacheLookups counts cache reads by cache name and result ("hit", "miss").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_aggregator_cache_lookups_total",
			Help: "Cache lookups, by cache and result.",
		},
		[]string{"cache", "result"},
	)

	// CacheEvictions counts capacity evictions on the in-memory path.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_aggregator_cache_evictions_total",
			Help: "Entries evicted because a cache reached capacity.",
		},
		[]string{"cache"},
	)

	// StoreErrors counts persistent store failures that were absorbed.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_aggregator_cache_store_errors_total",
			Help: "Persistent cache store failures, by cache and operation.",
		},
		[]string{"cache", "op"},
	)

	// FilteredVideos counts candidates dropped by the content filter, by rule.
	FilteredVideos = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_aggregator_filtered_videos_total",
			Help: "Candidate videos rejected by the content filter, by rule.",
		},
		[]string{"rule"},
	)

	// StrategyResults counts video resolution strategy outcomes.
	StrategyResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_aggregator_strategy_results_total",
			Help: "Video resolution strategy outcomes, by strategy and result.",
		},
		[]string{"strategy", "result"},
	)

	// ChannelFallbacks counts channels that were served from static data.
	ChannelFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_aggregator_channel_fallbacks_total",
			Help: "Per-channel fallbacks to static configuration, by call.",
		},
		[]string{"call"},
	)

	// AggregateDuration observes the wall time of a full aggregation run.
	AggregateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "channel_aggregator_aggregate_duration_seconds",
			Help:    "Duration of aggregation runs in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)
