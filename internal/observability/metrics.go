// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	SignaturesFetched   prometheus.Counter
	TransactionsFetched prometheus.Counter
	TransactionsPruned  prometheus.Counter
	BatchesEmitted      prometheus.Counter

	// Decode metrics
	TransactionsDecoded prometheus.Counter
	ActionsDecoded      *prometheus.CounterVec
	DecodeSkips         *prometheus.CounterVec

	// Assembly metrics
	PositionsAssembled prometheus.Gauge
	APIErrorPositions  prometheus.Gauge

	// Latency metrics
	RPCCallLatency  *prometheus.HistogramVec
	RPCRetries      *prometheus.CounterVec
	IndexAPILatency *prometheus.HistogramVec

	// Analysis metrics
	AnalysisRunsTotal *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dlmm_profit_lab"
	}

	return &Metrics{
		// Stream metrics
		SignaturesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "signatures_fetched_total",
			Help:      "Total number of wallet signatures fetched",
		}),
		TransactionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "transactions_fetched_total",
			Help:      "Total number of transaction bodies fetched",
		}),
		TransactionsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "transactions_pruned_total",
			Help:      "Total number of transactions skipped because the node pruned them",
		}),
		BatchesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "batches_emitted_total",
			Help:      "Total number of transaction batches emitted downstream",
		}),

		// Decode metrics
		TransactionsDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "transactions_decoded_total",
			Help:      "Total number of transactions run through the decoder",
		}),
		ActionsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "actions_decoded_total",
			Help:      "Total number of position actions decoded by kind",
		}, []string{"kind"}),
		DecodeSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "skips_total",
			Help:      "Total number of instructions skipped by reason",
		}, []string{"reason"}),

		// Assembly metrics
		PositionsAssembled: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "assembler",
			Name:      "positions",
			Help:      "Number of positions assembled in the current analysis",
		}),
		APIErrorPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "api_error_positions",
			Help:      "Number of positions with incomplete USD coverage in the current analysis",
		}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_retries_total",
			Help:      "Total number of RPC retries by method",
		}, []string{"method"}),
		IndexAPILatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index_api",
			Name:      "call_latency_seconds",
			Help:      "Index API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		// Analysis metrics
		AnalysisRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of wallet analyses by status",
		}, []string{"status"}),
		AnalysisDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Analysis phase duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")
