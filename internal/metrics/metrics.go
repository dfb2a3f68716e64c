// Package metrics provides Prometheus metrics for the flyerless proxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Result labels for metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Token resolution outcomes.
const (
	ResolutionCacheHit  = "cache_hit"
	ResolutionRefreshed = "refreshed"
	ResolutionFailed    = "failed"
)

var (
	// Registry holds every collector exported by the proxy.
	Registry = prometheus.NewRegistry()

	// TokenResolutionTotal counts access token resolutions by outcome.
	TokenResolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flyerless_proxy",
			Subsystem: "token",
			Name:      "resolutions_total",
			Help:      "Total number of access token resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// TokenRefreshTotal counts upstream token exchanges.
	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flyerless_proxy",
			Subsystem: "token",
			Name:      "refresh_total",
			Help:      "Total number of upstream token refresh attempts",
		},
		[]string{"result"},
	)

	// TokenRefreshDuration tracks how long upstream token exchanges take.
	TokenRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "flyerless_proxy",
			Subsystem: "token",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of upstream token refresh calls",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ConnectorTestTotal counts connectivity probes.
	ConnectorTestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flyerless_proxy",
			Subsystem: "connector",
			Name:      "test_total",
			Help:      "Total number of connector connectivity probes",
		},
		[]string{"connector", "result"},
	)

	// ForwardedRequestsTotal counts requests forwarded upstream.
	ForwardedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flyerless_proxy",
			Subsystem: "forward",
			Name:      "requests_total",
			Help:      "Total number of requests forwarded to the upstream API",
		},
		[]string{"method", "result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		TokenResolutionTotal,
		TokenRefreshTotal,
		TokenRefreshDuration,
		ConnectorTestTotal,
		ForwardedRequestsTotal,
	)
}

// RecordResolution records the outcome of an access token resolution.
func RecordResolution(outcome string) {
	TokenResolutionTotal.WithLabelValues(outcome).Inc()
}

// RecordRefresh records an upstream token refresh attempt.
func RecordRefresh(success bool, seconds float64) {
	TokenRefreshTotal.WithLabelValues(result(success)).Inc()
	TokenRefreshDuration.Observe(seconds)
}

// RecordConnectorTest records a connectivity probe result.
func RecordConnectorTest(connector string, authorised bool) {
	ConnectorTestTotal.WithLabelValues(connector, result(authorised)).Inc()
}

// RecordForward records a forwarded request.
func RecordForward(method string, success bool) {
	ForwardedRequestsTotal.WithLabelValues(method, result(success)).Inc()
}

func result(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}
