package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes the engine's Prometheus instrumentation. It satisfies the
// MetricsCollector interfaces declared by the bidding and settlement services.
type Collector struct {
	registry *prometheus.Registry

	bidsPlaced     prometheus.Counter
	bidsRejected   *prometheus.CounterVec
	bidAmounts     prometheus.Histogram
	auctionsClosed *prometheus.CounterVec
	windowsExpired prometheus.Counter
	sweepDuration  prometheus.Histogram
}

// NewCollector creates and registers the engine metrics on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	c := &Collector{
		registry: registry,
		bidsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auction_bids_placed_total",
			Help: "Total number of accepted bids.",
		}),
		bidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_bids_rejected_total",
			Help: "Total number of rejected bid submissions by reason.",
		}, []string{"reason"}),
		bidAmounts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auction_bid_amount_cents",
			Help:    "Distribution of accepted bid amounts in cents.",
			Buckets: prometheus.ExponentialBuckets(1000, 4, 10),
		}),
		auctionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_closed_total",
			Help: "Total number of auctions closed by outcome.",
		}, []string{"outcome"}),
		windowsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auction_token_windows_expired_total",
			Help: "Total number of token payment windows that expired unpaid.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auction_sweep_duration_seconds",
			Help:    "Duration of time-driven transition sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		c.bidsPlaced, c.bidsRejected, c.bidAmounts,
		c.auctionsClosed, c.windowsExpired, c.sweepDuration,
	)
	return c
}

func (c *Collector) RecordBidPlaced(amountCents int64) {
	c.bidsPlaced.Inc()
	c.bidAmounts.Observe(float64(amountCents))
}

func (c *Collector) RecordBidRejected(reason string) {
	c.bidsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordAuctionClosed(outcome string) {
	c.auctionsClosed.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordTokenWindowExpired() {
	c.windowsExpired.Inc()
}

func (c *Collector) RecordSweepDuration(d time.Duration) {
	c.sweepDuration.Observe(d.Seconds())
}

// Handler returns the /metrics scrape handler for this registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// NoopCollector discards all measurements. Used in tests.
type NoopCollector struct{}

func (NoopCollector) RecordBidPlaced(int64)             {}
func (NoopCollector) RecordBidRejected(string)          {}
func (NoopCollector) RecordAuctionClosed(string)        {}
func (NoopCollector) RecordTokenWindowExpired()         {}
func (NoopCollector) RecordSweepDuration(time.Duration) {}
