package transport

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Statistics accumulates QUIC transport-level counters: bytes/packets
// moved and errors. Migration counters are kept separately, in
// MigrationManager's MigrationStatistics. All fields use atomics so Connection can update them from
// its read/write goroutines without a lock.
type Statistics struct {
	bytesSent       int64
	bytesReceived   int64
	packetsSent     int64
	packetsReceived int64
	errors          int64
}

func (s *Statistics) AddSent(n int) {
	atomic.AddInt64(&s.bytesSent, int64(n))
	atomic.AddInt64(&s.packetsSent, 1)
}

func (s *Statistics) AddReceived(n int) {
	atomic.AddInt64(&s.bytesReceived, int64(n))
	atomic.AddInt64(&s.packetsReceived, 1)
}

func (s *Statistics) IncrementErrors() { atomic.AddInt64(&s.errors, 1) }

// StatisticsSnapshot is a point-in-time read of Statistics.
type StatisticsSnapshot struct {
	BytesSent       int64
	BytesReceived   int64
	PacketsSent     int64
	PacketsReceived int64
	Errors          int64
}

func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		BytesSent:       atomic.LoadInt64(&s.bytesSent),
		BytesReceived:   atomic.LoadInt64(&s.bytesReceived),
		PacketsSent:     atomic.LoadInt64(&s.packetsSent),
		PacketsReceived: atomic.LoadInt64(&s.packetsReceived),
		Errors:          atomic.LoadInt64(&s.errors),
	}
}

// PrometheusExporter mirrors Statistics and MigrationStatistics as gauges
// on a private registry, the same per-instance-registry pattern
// stats.PrometheusExporter uses for per-transfer metrics.
type PrometheusExporter struct {
	registry *prometheus.Registry

	bytesSent       prometheus.Gauge
	bytesReceived   prometheus.Gauge
	errors          prometheus.Gauge
	migrations      prometheus.Gauge
	migrationErrors prometheus.Gauge
}

// NewPrometheusExporter registers a fresh set of gauges for connectionID.
func NewPrometheusExporter(connectionID string) *PrometheusExporter {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"connection_id": connectionID}

	e := &PrometheusExporter{
		registry: registry,
		bytesSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quic_transport_bytes_sent", Help: "Cumulative bytes sent.", ConstLabels: labels,
		}),
		bytesReceived: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quic_transport_bytes_received", Help: "Cumulative bytes received.", ConstLabels: labels,
		}),
		errors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quic_transport_errors_total", Help: "Transport-level errors.", ConstLabels: labels,
		}),
		migrations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quic_transport_migrations_total", Help: "Successful connection migrations.", ConstLabels: labels,
		}),
		migrationErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quic_transport_migration_failures_total", Help: "Failed connection migrations.", ConstLabels: labels,
		}),
	}
	registry.MustRegister(e.bytesSent, e.bytesReceived, e.errors, e.migrations, e.migrationErrors)
	return e
}

func (e *PrometheusExporter) Registry() *prometheus.Registry { return e.registry }

// Update pushes fresh snapshots into the gauges.
func (e *PrometheusExporter) Update(ts StatisticsSnapshot, ms MigrationStatistics) {
	e.bytesSent.Set(float64(ts.BytesSent))
	e.bytesReceived.Set(float64(ts.BytesReceived))
	e.errors.Set(float64(ts.Errors))
	e.migrations.Set(float64(ms.SuccessfulMigrations))
	e.migrationErrors.Set(float64(ms.FailedMigrations))
}
