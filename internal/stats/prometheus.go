package stats

import "github.com/prometheus/client_golang/prometheus"

// PrometheusExporter mirrors a Collector's counters as Prometheus gauges,
// using a dedicated registry per exporter so tests can create independent
// instances without colliding on the default registry.
type PrometheusExporter struct {
	registry *prometheus.Registry

	bytesTransferred prometheus.Gauge
	chunksProcessed  prometheus.Gauge
	currentRateBps   prometheus.Gauge
	compressionRatio prometheus.Gauge
	errors           prometheus.Gauge
}

// NewPrometheusExporter registers a fresh set of gauges for transferID on
// their own registry.
func NewPrometheusExporter(transferID string) *PrometheusExporter {
	registry := prometheus.NewRegistry()

	e := &PrometheusExporter{
		registry: registry,
		bytesTransferred: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "transfer_bytes_transferred",
			Help:        "Cumulative bytes transferred for this transfer.",
			ConstLabels: prometheus.Labels{"transfer_id": transferID},
		}),
		chunksProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "transfer_chunks_processed",
			Help:        "Chunks processed by the final pipeline stage.",
			ConstLabels: prometheus.Labels{"transfer_id": transferID},
		}),
		currentRateBps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "transfer_current_rate_bytes_per_second",
			Help:        "Moving-window throughput.",
			ConstLabels: prometheus.Labels{"transfer_id": transferID},
		}),
		compressionRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "transfer_compression_ratio",
			Help:        "bytes_on_wire / bytes_transferred.",
			ConstLabels: prometheus.Labels{"transfer_id": transferID},
		}),
		errors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "transfer_errors_total",
			Help:        "Errors recorded for this transfer.",
			ConstLabels: prometheus.Labels{"transfer_id": transferID},
		}),
	}

	registry.MustRegister(e.bytesTransferred, e.chunksProcessed, e.currentRateBps, e.compressionRatio, e.errors)
	return e
}

// Registry returns the exporter's private Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry { return e.registry }

// Update pushes a fresh Snapshot into the gauges.
func (e *PrometheusExporter) Update(s Snapshot) {
	e.bytesTransferred.Set(float64(s.BytesTransferred))
	e.chunksProcessed.Set(float64(s.ChunksProcessed))
	e.currentRateBps.Set(s.CurrentRateBps)
	e.compressionRatio.Set(s.CompressionRatio)
	e.errors.Set(float64(s.Errors))
}
