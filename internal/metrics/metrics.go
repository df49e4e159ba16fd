package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatusChecks is a counter for status checks, labeled by outcome.
	StatusChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authstatus_status_checks_total",
			Help: "The total number of status checks, by outcome.",
		},
		[]string{"outcome"},
	)

	// CacheHits is a counter for status cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authstatus_cache_hits_total",
			Help: "The total number of status cache hits.",
		},
	)

	// CacheMisses is a counter for status cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authstatus_cache_misses_total",
			Help: "The total number of status cache misses.",
		},
	)

	// ProviderCalls is a counter for outbound Twitter API calls.
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authstatus_provider_calls_total",
			Help: "The total number of Twitter API calls, by endpoint and result.",
		},
		[]string{"endpoint", "result"},
	)

	// ProviderCallDuration is a histogram of Twitter API call latency.
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authstatus_provider_call_duration_seconds",
			Help:    "A histogram of Twitter API call duration.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"endpoint"},
	)

	// TokenRefreshes is a counter for token refresh attempts, by result.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authstatus_token_refreshes_total",
			Help: "The total number of token refresh attempts, by result.",
		},
		[]string{"result"},
	)

	// CredentialsRemoved is a counter for credentials evicted after
	// irrecoverable provider rejections.
	CredentialsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authstatus_credentials_removed_total",
			Help: "The total number of credentials removed after provider rejection.",
		},
	)
)
