// Package metrics exposes Prometheus collectors for the fetch service.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crawlkit/fetchd/internal/fetch"
)

// DispatcherStats is the polling surface the gauges read from. The dispatcher
// exposes plain accessors; this package owns the Prometheus wiring.
type DispatcherStats interface {
	ActiveFetches() int
	QueuedFetches() int
	CurrentRate() float64
	TrackedDomains() int
}

// Exporter records per-result counters. It implements fetch.Sink so it can
// sit in the result fan-out.
type Exporter struct {
	resultsTotal  *prometheus.CounterVec
	fetchBytes    prometheus.Counter
	fetchDuration prometheus.Histogram
}

// NewExporter registers the result collectors against the provided registry.
func NewExporter(reg prometheus.Registerer) (*Exporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	e := &Exporter{
		resultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fetchd_results_total",
			Help: "Completed requests partitioned by outcome status.",
		}, []string{"status"}),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fetchd_fetch_bytes_total",
			Help: "Total bytes fetched.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fetchd_fetch_duration_seconds",
			Help:    "Duration of successful fetches.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
	}
	for _, c := range []prometheus.Collector{e.resultsTotal, e.fetchBytes, e.fetchDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return e, nil
}

// Deliver updates the result counters. It never fails.
func (e *Exporter) Deliver(_ context.Context, rec fetch.ResultRecord) error {
	e.resultsTotal.WithLabelValues(string(rec.State.Status)).Inc()
	if rec.Payload != nil {
		e.fetchBytes.Add(float64(len(rec.Payload.Body)))
		if rec.Payload.Elapsed > 0 {
			e.fetchDuration.Observe(rec.Payload.Elapsed.Seconds())
		}
	}
	return nil
}

// RegisterDispatcherGauges exposes the dispatcher's accessors as gauges,
// polled by Prometheus on scrape rather than pushed by the core.
func RegisterDispatcherGauges(reg prometheus.Registerer, stats DispatcherStats) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fetchd_urls_being_fetched",
			Help: "Number of fetches currently executing.",
		}, func() float64 { return float64(stats.ActiveFetches()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fetchd_urls_queued",
			Help: "Number of admitted fetches waiting for a worker.",
		}, func() float64 { return float64(stats.QueuedFetches()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fetchd_urls_fetched_per_second",
			Help: "Completed fetch attempts per second over the trailing window.",
		}, stats.CurrentRate),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fetchd_throttle_domains",
			Help: "Distinct domains tracked by the throttle map. Grows without bound.",
		}, func() float64 { return float64(stats.TrackedDomains()) }),
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return fmt.Errorf("register gauge: %w", err)
		}
	}
	return nil
}

// Handler returns an http.Handler exposing the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
