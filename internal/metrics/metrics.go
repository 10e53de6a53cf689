// Package metrics defines the single Prometheus registry shared by the
// sink, feeder, and executor components, grounded on
// internal/interfaces/http.NewMetricsRegistry: one struct of vecs/gauges,
// constructed once, registered once, read by the operator HTTP surface.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every counter/gauge/histogram this run exposes.
type Registry struct {
	SinkWriteTotal      *prometheus.CounterVec
	SinkWriteLatency    *prometheus.HistogramVec
	SinkDeadletterTotal *prometheus.CounterVec

	ReaderRowsTotal   *prometheus.CounterVec
	ReaderDedupeTotal prometheus.Counter
	ReaderCorruptRows *prometheus.CounterVec

	SignalsEmittedTotal  *prometheus.CounterVec
	SignalsConfirmTotal  prometheus.Counter

	ExecutorSubmitTotal      *prometheus.CounterVec
	ExecutorLatency          *prometheus.HistogramVec
	ExecutorThrottleTotal    *prometheus.CounterVec
	ExecutorCurrentRateLimit *prometheus.GaugeVec
	ExecutorCircuitState     *prometheus.GaugeVec

	EquivalenceDivergenceTotal *prometheus.CounterVec
}

var (
	once     sync.Once
	instance *Registry
)

// Default returns the process-wide Registry, constructing and registering
// it exactly once regardless of how many components call Default.
func Default() *Registry {
	once.Do(func() {
		instance = newRegistry()
		prometheus.MustRegister(
			instance.SinkWriteTotal,
			instance.SinkWriteLatency,
			instance.SinkDeadletterTotal,
			instance.ReaderRowsTotal,
			instance.ReaderDedupeTotal,
			instance.ReaderCorruptRows,
			instance.SignalsEmittedTotal,
			instance.SignalsConfirmTotal,
			instance.ExecutorSubmitTotal,
			instance.ExecutorLatency,
			instance.ExecutorThrottleTotal,
			instance.ExecutorCurrentRateLimit,
			instance.ExecutorCircuitState,
			instance.EquivalenceDivergenceTotal,
		)
	})
	return instance
}

func newRegistry() *Registry {
	return &Registry{
		SinkWriteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oficvd_sink_write_total",
			Help: "Total sink write attempts by sink kind and result.",
		}, []string{"sink", "result"}),

		SinkWriteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oficvd_sink_write_latency_seconds",
			Help:    "Sink write latency in seconds by sink kind.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"sink"}),

		SinkDeadletterTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oficvd_sink_deadletter_total",
			Help: "Total signals routed to the deadletter log by sink kind.",
		}, []string{"sink"}),

		ReaderRowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oficvd_reader_rows_total",
			Help: "Total rows yielded by the reader, by kind and layer.",
		}, []string{"kind", "layer"}),

		ReaderDedupeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oficvd_reader_rows_deduped_total",
			Help: "Total rows dropped by the reader's row-id dedupe window.",
		}),

		ReaderCorruptRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oficvd_reader_corrupt_rows_total",
			Help: "Total rows dropped for missing required fields, by kind.",
		}, []string{"kind"}),

		SignalsEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oficvd_signals_emitted_total",
			Help: "Total signals emitted by the Signal Core, by decision_code.",
		}, []string{"decision_code"}),

		SignalsConfirmTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oficvd_signals_confirmed_total",
			Help: "Total confirmed (actionable) signals emitted.",
		}),

		ExecutorSubmitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oficvd_executor_submit_total",
			Help: "Total order submissions by adapter mode and result.",
		}, []string{"mode", "result"}),

		ExecutorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oficvd_executor_latency_seconds",
			Help:    "Order submit round-trip latency in seconds, by mode.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"mode"}),

		ExecutorThrottleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oficvd_executor_throttle_total",
			Help: "Total orders dropped by the executor's rate limiter, by action.",
		}, []string{"action"}),

		ExecutorCurrentRateLimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oficvd_executor_current_rate_limit",
			Help: "Configured token-bucket rate limit (RPS), by action.",
		}, []string{"action"}),

		ExecutorCircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oficvd_executor_circuit_state",
			Help: "Circuit breaker state (0=closed,1=half-open,2=open), by name.",
		}, []string{"name"}),

		EquivalenceDivergenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oficvd_equivalence_divergence_total",
			Help: "Total fill/position/PnL divergences found by the equivalence harness, by field.",
		}, []string{"field"}),
	}
}
