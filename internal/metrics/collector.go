// internal/metrics/collector.go
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lasersell/lasersell/internal/events"
)

const namespace = "lasersell"

// Collector records prometheus metrics from engine notifications and RPC
// observations. It owns its registry so tests can create one per case.
type Collector struct {
	registry *prometheus.Registry

	sellAttempts    prometheus.Counter
	sellOutcomes    *prometheus.CounterVec
	sellRetries     *prometheus.CounterVec
	sellSlippage    prometheus.Histogram
	rpcLatency      *prometheus.HistogramVec
	rpcRequests     *prometheus.CounterVec
	streamConnected prometheus.Gauge
	walletLamports  prometheus.Gauge
	walletUsd1      prometheus.Gauge
	paused          prometheus.Gauge
}

var _ events.Handler = (*Collector)(nil)

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sellAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sell_attempts_total",
			Help:      "Sell transactions signed and submitted",
		}),
		sellOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sells_total",
			Help:      "Finished sell sessions by status and reason",
		}, []string{"status", "reason"}),
		sellRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sell_retries_total",
			Help:      "Sell retries by failure phase",
		}, []string{"phase"}),
		sellSlippage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sell_slippage_bps",
			Help:      "Slippage tolerance of completed sells",
			Buckets:   prometheus.LinearBuckets(500, 500, 10),
		}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "RPC request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method"}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPC requests by method and status",
		}, []string{"method", "status"}),
		streamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connected",
			Help:      "1 while the stream connection is up",
		}),
		walletLamports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_lamports",
			Help:      "Wallet SOL balance in lamports",
		}),
		walletUsd1: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_usd1_base_units",
			Help:      "Wallet USD1 balance in base units",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_paused",
			Help:      "1 while new sell sessions are paused",
		}),
	}

	c.registry.MustRegister(
		c.sellAttempts, c.sellOutcomes, c.sellRetries, c.sellSlippage,
		c.rpcLatency, c.rpcRequests, c.streamConnected,
		c.walletLamports, c.walletUsd1, c.paused,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry exposes the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// HTTPHandler serves the registry in the prometheus text format.
func (c *Collector) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRPC records one RPC call. Its signature matches solbc.Observer.
func (c *Collector) ObserveRPC(method string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.rpcLatency.WithLabelValues(method).Observe(elapsed.Seconds())
	c.rpcRequests.WithLabelValues(method, status).Inc()
}

// Handle implements events.Handler.
func (c *Collector) Handle(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.SellAttempt:
		c.sellAttempts.Inc()
	case events.SellRetry:
		c.sellRetries.WithLabelValues(e.Phase).Inc()
	case events.SellComplete:
		c.sellOutcomes.WithLabelValues("success", e.Reason).Inc()
		c.sellSlippage.Observe(float64(e.SlippageBps))
	case events.SessionError:
		c.sellOutcomes.WithLabelValues("error", "").Inc()
	case events.SolanaWsStatus:
		c.streamConnected.Set(boolGauge(e.Connected))
	case events.BalanceUpdate:
		c.walletLamports.Set(float64(e.Lamports))
	case events.Usd1BalanceUpdate:
		c.walletUsd1.Set(float64(e.BaseUnits))
	case events.PauseState:
		c.paused.Set(boolGauge(e.Paused))
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
