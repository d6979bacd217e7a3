// Package metrics holds the Prometheus collectors of the importer
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ImportMetrics counts import outcomes
type ImportMetrics struct {
	importsTotal      *prometheus.CounterVec // By status
	importDuration    prometheus.Histogram
	verticalsImported prometheus.Counter
}

// NewImportMetrics creates the import collectors and registers them with
// registerer. A nil registerer leaves them unregistered.
func NewImportMetrics(registerer prometheus.Registerer) (*ImportMetrics, error) {
	m := &ImportMetrics{
		importsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qreview",
			Name:      "imports_total",
			Help:      "Total number of QReview exports processed, by outcome",
		}, []string{"status"}),

		importDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qreview",
			Name:      "import_duration_seconds",
			Help:      "Time taken to parse, map and store one export",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		verticalsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qreview",
			Name:      "verticals_imported_total",
			Help:      "Total number of verticals stored from valid exports",
		}),
	}

	if registerer == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.importsTotal, m.importDuration, m.verticalsImported} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewRegistry returns a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// RecordImport records one processed export.
func (m *ImportMetrics) RecordImport(status string, verticals int, duration time.Duration) {
	if m == nil {
		return
	}

	m.importsTotal.WithLabelValues(status).Inc()
	m.importDuration.Observe(duration.Seconds())
	if verticals > 0 {
		m.verticalsImported.Add(float64(verticals))
	}
}
