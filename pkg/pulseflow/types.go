package pulseflow

import (
	"github.com/ghalamif/PulseFlow/internal/app/publisher"
	"github.com/ghalamif/PulseFlow/internal/app/spool"
	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// TelemetrySample is the record encoded into every published payload.
type TelemetrySample = domain.TelemetrySample

// Vitals is one heart rate and SpO2 reading.
type Vitals = domain.Vitals

// Range is an inclusive integer bound.
type Range = domain.Range

// PublishError wraps a channel failure; it matches ErrPublishFailed.
type PublishError = domain.PublishError

// Channel transmits named events with a visibility scope (HTTP, Kafka, databases, etc.).
type Channel = ports.Channel

// Visibility scopes a published event.
type Visibility = ports.Visibility

const (
	Private = ports.Private
	Public  = ports.Public
)

// Clock supplies monotonic milliseconds and wall-clock seconds.
type Clock = ports.Clock

// Identity supplies the device identifier stamped into each payload.
type Identity = ports.Identity

// Sampler produces the vitals for one publish tick.
type Sampler = ports.Sampler

// Random draws inclusive integers.
type Random = ports.Random

// Observability emits logs and metrics about publish attempts and the spool.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// WALEntryID identifies an event held by the spool.
type WALEntryID = ports.WALEntryID

// SpooledEvent is a publish call held on disk until the channel accepts it.
type SpooledEvent = ports.SpooledEvent

// Publisher is the interval-gated telemetry publisher driven by the runtime.
type Publisher = publisher.Publisher

// PublishResult describes one publish attempt.
type PublishResult = publisher.Result

// Metric names reported by the default observability backend.
const (
	MetricPublishTotal        = ports.MetricPublishTotal
	MetricPublishFailedTotal  = ports.MetricPublishFailedTotal
	MetricPublishLatency      = ports.MetricPublishLatency
	MetricLastHeartRate       = ports.MetricLastHeartRate
	MetricLastSpO2            = ports.MetricLastSpO2
	MetricSpoolQueueLength    = ports.MetricSpoolQueueLength
	MetricSpoolWALSizeBytes   = ports.MetricSpoolWALSizeBytes
	MetricSpoolDeliveredTotal = ports.MetricSpoolDeliveredTotal
	MetricSpoolDroppedTotal   = ports.MetricSpoolDroppedTotal
	MetricSamplerFallback     = ports.MetricSamplerFallback
	MetricSamplerReconnects   = ports.MetricSamplerReconnects
)

var (
	ErrPublishFailed = domain.ErrPublishFailed
	ErrQueueFull     = spool.ErrQueueFull
	ErrSpoolFull     = spool.ErrSpoolFull
)

// EncodePayload renders a sample in the wire format.
func EncodePayload(s TelemetrySample) ([]byte, error) {
	return domain.EncodePayload(s)
}

// DecodePayload parses the wire format back into a sample.
func DecodePayload(b []byte) (TelemetrySample, error) {
	return domain.DecodePayload(b)
}
