package uplink

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks Recorder-side transaction counters, the same shape as
// the teacher's aznet.Metrics interface re-pointed at archive/alert/
// registry traffic instead of handshake/token transport.
type Metrics interface {
	IncrementArchiveWrite()
	IncrementAlertSent()
	IncrementRegistryUpsert()
	IncrementBytesArchived(n int64)

	GetArchiveWriteCount() int64
	GetAlertSentCount() int64
	GetRegistryUpsertCount() int64
	GetBytesArchived() int64
}

// DefaultMetrics implements Metrics with atomic counters.
type DefaultMetrics struct {
	archiveWrites   int64
	alertsSent      int64
	registryUpserts int64
	bytesArchived   int64
}

// NewDefaultMetrics creates a zeroed DefaultMetrics.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementArchiveWrite()        { atomic.AddInt64(&m.archiveWrites, 1) }
func (m *DefaultMetrics) IncrementAlertSent()           { atomic.AddInt64(&m.alertsSent, 1) }
func (m *DefaultMetrics) IncrementRegistryUpsert()      { atomic.AddInt64(&m.registryUpserts, 1) }
func (m *DefaultMetrics) IncrementBytesArchived(n int64) { atomic.AddInt64(&m.bytesArchived, n) }

func (m *DefaultMetrics) GetArchiveWriteCount() int64   { return atomic.LoadInt64(&m.archiveWrites) }
func (m *DefaultMetrics) GetAlertSentCount() int64      { return atomic.LoadInt64(&m.alertsSent) }
func (m *DefaultMetrics) GetRegistryUpsertCount() int64 { return atomic.LoadInt64(&m.registryUpserts) }
func (m *DefaultMetrics) GetBytesArchived() int64       { return atomic.LoadInt64(&m.bytesArchived) }

// Snapshotter is implemented by cyphal.Receiver: the counters a
// PrometheusCollector exports alongside the Recorder's own metrics.
type Snapshotter interface {
	TransferCount() uint64
	ErrorCount() uint64
	SessionCount() int
}

// PrometheusCollector exports a Recorder's metrics and its receiver's
// transfer/error counters as Prometheus counters, plus the receiver's
// session occupancy as a gauge, grounded on
// runZeroInc/sockstats's pkg/exporter Collector shape (Describe/Collect
// over a fixed set of descriptors, no per-scrape allocation of the
// descriptor slice).
type PrometheusCollector struct {
	receiver Snapshotter
	metrics  Metrics

	transferCount    *prometheus.Desc
	errorCount       *prometheus.Desc
	sessionOccupancy *prometheus.Desc
	archiveWrites    *prometheus.Desc
	alertsSent       *prometheus.Desc
	registryUpserts  *prometheus.Desc
	bytesArchived    *prometheus.Desc
}

// NewPrometheusCollector builds a collector over a receiver and the
// recorder metrics observing it.
func NewPrometheusCollector(receiver Snapshotter, metrics Metrics, constLabels prometheus.Labels) *PrometheusCollector {
	return &PrometheusCollector{
		receiver:         receiver,
		metrics:          metrics,
		transferCount:    prometheus.NewDesc("cyphal_transfer_count", "Transfers successfully received.", nil, constLabels),
		errorCount:       prometheus.NewDesc("cyphal_error_count", "Frames that did not become a transfer.", nil, constLabels),
		sessionOccupancy: prometheus.NewDesc("cyphal_session_occupancy", "Source-node sessions currently held open across all subscriptions.", nil, constLabels),
		archiveWrites:    prometheus.NewDesc("cyphal_uplink_archive_writes_total", "Archive batches written.", nil, constLabels),
		alertsSent:       prometheus.NewDesc("cyphal_uplink_alerts_sent_total", "Threshold alerts queued.", nil, constLabels),
		registryUpserts:  prometheus.NewDesc("cyphal_uplink_registry_upserts_total", "Node registry rows upserted.", nil, constLabels),
		bytesArchived:    prometheus.NewDesc("cyphal_uplink_bytes_archived_total", "Bytes written to the archive container.", nil, constLabels),
	}
}

func (c *PrometheusCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.transferCount
	descs <- c.errorCount
	descs <- c.sessionOccupancy
	descs <- c.archiveWrites
	descs <- c.alertsSent
	descs <- c.registryUpserts
	descs <- c.bytesArchived
}

func (c *PrometheusCollector) Collect(metrics chan<- prometheus.Metric) {
	metrics <- prometheus.MustNewConstMetric(c.transferCount, prometheus.CounterValue, float64(c.receiver.TransferCount()))
	metrics <- prometheus.MustNewConstMetric(c.errorCount, prometheus.CounterValue, float64(c.receiver.ErrorCount()))
	metrics <- prometheus.MustNewConstMetric(c.sessionOccupancy, prometheus.GaugeValue, float64(c.receiver.SessionCount()))
	metrics <- prometheus.MustNewConstMetric(c.archiveWrites, prometheus.CounterValue, float64(c.metrics.GetArchiveWriteCount()))
	metrics <- prometheus.MustNewConstMetric(c.alertsSent, prometheus.CounterValue, float64(c.metrics.GetAlertSentCount()))
	metrics <- prometheus.MustNewConstMetric(c.registryUpserts, prometheus.CounterValue, float64(c.metrics.GetRegistryUpsertCount()))
	metrics <- prometheus.MustNewConstMetric(c.bytesArchived, prometheus.CounterValue, float64(c.metrics.GetBytesArchived()))
}
