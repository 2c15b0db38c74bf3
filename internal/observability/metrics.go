// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec
	RPCRetries     *prometheus.CounterVec

	// Read metrics
	DegradedReads  *prometheus.CounterVec
	TokensListed   prometheus.Counter
	DecodeFailures *prometheus.CounterVec

	// Mint metrics
	MintsSubmitted    *prometheus.CounterVec
	MintOutcomes      *prometheus.CounterVec
	ConfirmationDelay prometheus.Histogram

	// Watcher metrics
	TransfersObserved *prometheus.CounterVec
	WSReconnects      prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "novatok"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "JSON-RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "JSON-RPC calls that returned an error, by method",
		}, []string{"method"}),
		RPCRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "retries_total",
			Help:      "JSON-RPC transport retries by method",
		}, []string{"method"}),

		DegradedReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reader",
			Name:      "degraded_reads_total",
			Help:      "Contract reads that failed and were degraded to an empty result",
		}, []string{"operation"}),
		TokensListed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reader",
			Name:      "tokens_listed_total",
			Help:      "Total number of owned tokens returned by listings",
		}),
		DecodeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "decode_failures_total",
			Help:      "Token URIs that could not be turned into metadata, by reason",
		}, []string{"reason"}),

		MintsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "submitted_total",
			Help:      "Mint transactions submitted by contract method",
		}, []string{"method"}),
		MintOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "outcomes_total",
			Help:      "Mint flow outcomes (confirmed, reverted, rejected, failed)",
		}, []string{"outcome"}),
		ConfirmationDelay: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "confirmation_delay_seconds",
			Help:      "Time from submission to receipt",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		TransfersObserved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "transfers_observed_total",
			Help:      "Transfer events observed by kind",
		}, []string{"kind"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "ws_reconnects_total",
			Help:      "Websocket reconnect attempts",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by database and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Database query errors by database and operation",
		}, []string{"database", "operation"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration by method and route",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 30, 120},
		}, []string{"method", "route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCCall records latency and outcome of a JSON-RPC call.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordRPCRetry increments the retry counter for method.
func RecordRPCRetry(method string) {
	DefaultMetrics.RPCRetries.WithLabelValues(method).Inc()
}

// RecordDegradedRead records a contract read that fell back to an empty result.
func RecordDegradedRead(operation string) {
	DefaultMetrics.DegradedReads.WithLabelValues(operation).Inc()
}

// RecordTokensListed adds n to the listed tokens counter.
func RecordTokensListed(n int) {
	DefaultMetrics.TokensListed.Add(float64(n))
}

// RecordDecodeFailure records a token URI that produced no metadata.
func RecordDecodeFailure(reason string) {
	DefaultMetrics.DecodeFailures.WithLabelValues(reason).Inc()
}

// RecordMintSubmitted increments the submitted counter for method.
func RecordMintSubmitted(method string) {
	DefaultMetrics.MintsSubmitted.WithLabelValues(method).Inc()
}

// RecordMintOutcome records the terminal state of a mint flow.
func RecordMintOutcome(outcome string) {
	DefaultMetrics.MintOutcomes.WithLabelValues(outcome).Inc()
}

// RecordConfirmationDelay records time from submission to receipt.
func RecordConfirmationDelay(seconds float64) {
	DefaultMetrics.ConfirmationDelay.Observe(seconds)
}

// RecordTransferObserved increments the transfer counter for kind.
func RecordTransferObserved(kind string) {
	DefaultMetrics.TransfersObserved.WithLabelValues(kind).Inc()
}

// RecordWSReconnect increments the websocket reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records an API request. route is the route pattern, not the raw path.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
