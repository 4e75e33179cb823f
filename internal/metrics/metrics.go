// Package metrics exposes Prometheus instruments for note extraction and
// indexing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marginalia"

// Extraction results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the application's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	extracted *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	indexed   prometheus.Gauge
}

// New creates the instruments on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		extracted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_extracted_total",
			Help:      "Notes run through extraction, by format and result.",
		}, []string{"format", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent extracting a single note.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"format"}),
		indexed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_notes",
			Help:      "Notes currently in the index.",
		}),
	}
}

// ObserveExtraction records one extraction of a note in format.
func (m *Metrics) ObserveExtraction(format string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.extracted.WithLabelValues(format, result).Inc()
	m.duration.WithLabelValues(format).Observe(took.Seconds())
}

// SetIndexed sets the number of indexed notes.
func (m *Metrics) SetIndexed(n int) {
	if m == nil {
		return
	}
	m.indexed.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
