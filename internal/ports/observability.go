package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	RecordDrop(id WALEntryID, ev *SpooledEvent, err error)
}

type Field struct {
	Key   string
	Value any
}

// Metric names shared by the publisher, the spool and observability backends.
const (
	MetricPublishTotal        = "pulse_publish_total"
	MetricPublishFailedTotal  = "pulse_publish_failed_total"
	MetricPublishLatency      = "pulse_publish_latency_seconds"
	MetricLastHeartRate       = "pulse_last_heart_rate"
	MetricLastSpO2            = "pulse_last_spo2"
	MetricSpoolQueueLength    = "pulse_spool_queue_length"
	MetricSpoolWALSizeBytes   = "pulse_spool_wal_size_bytes"
	MetricSpoolDeliveredTotal = "pulse_spool_delivered_total"
	MetricSpoolDroppedTotal   = "pulse_spool_dropped_total"
	MetricSamplerFallback     = "pulse_sampler_fallback_total"
	MetricSamplerReconnects   = "pulse_sampler_reconnects_total"
)
