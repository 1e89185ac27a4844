package pulseflow

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	base "github.com/ghalamif/PulseFlow/pkg/pulseflow"
)

// Re-exported errors for convenience.
var (
	ErrPublishFailed = base.ErrPublishFailed
	ErrQueueFull     = base.ErrQueueFull
	ErrSpoolFull     = base.ErrSpoolFull
	ErrChannelClosed = base.ErrChannelClosed
)

const (
	Private = base.Private
	Public  = base.Public
)

const (
	MetricPublishTotal        = base.MetricPublishTotal
	MetricPublishFailedTotal  = base.MetricPublishFailedTotal
	MetricPublishLatency      = base.MetricPublishLatency
	MetricLastHeartRate       = base.MetricLastHeartRate
	MetricLastSpO2            = base.MetricLastSpO2
	MetricSpoolQueueLength    = base.MetricSpoolQueueLength
	MetricSpoolWALSizeBytes   = base.MetricSpoolWALSizeBytes
	MetricSpoolDeliveredTotal = base.MetricSpoolDeliveredTotal
	MetricSpoolDroppedTotal   = base.MetricSpoolDroppedTotal
	MetricSamplerFallback     = base.MetricSamplerFallback
	MetricSamplerReconnects   = base.MetricSamplerReconnects
)

// Type aliases so consumers can import github.com/ghalamif/PulseFlow directly.
type (
	Config              = base.Config
	DeviceConfig        = base.DeviceConfig
	PublisherConfig     = base.PublisherConfig
	SamplerConfig       = base.SamplerConfig
	OPCUAConfig         = base.OPCUAConfig
	ChannelConfig       = base.ChannelConfig
	HTTPConfig          = base.HTTPConfig
	KafkaConfig         = base.KafkaConfig
	TimescaleConfig     = base.TimescaleConfig
	SpoolConfig         = base.SpoolConfig
	Policy              = base.Policy
	MetricsConfig       = base.MetricsConfig
	LogConfig           = base.LogConfig
	Flow                = base.Flow
	DeviceRuntime       = base.DeviceRuntime
	DeviceRuntimeOption = base.DeviceRuntimeOption
	Publisher           = base.Publisher
	PublishResult       = base.PublishResult
	PublishError        = base.PublishError
	TelemetrySample     = base.TelemetrySample
	Vitals              = base.Vitals
	Range               = base.Range
	Channel             = base.Channel
	Visibility          = base.Visibility
	Clock               = base.Clock
	Identity            = base.Identity
	Sampler             = base.Sampler
	Random              = base.Random
	Observability       = base.Observability
	Field               = base.Field
	WALEntryID          = base.WALEntryID
	SpooledEvent        = base.SpooledEvent
	Event               = base.Event
	EventHandler        = base.EventHandler
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Payload helpers.
func EncodePayload(s TelemetrySample) ([]byte, error) {
	return base.EncodePayload(s)
}

func DecodePayload(b []byte) (TelemetrySample, error) {
	return base.DecodePayload(b)
}

// Flow builder helpers.
func Conf(path string) (*Flow, error) {
	return base.Conf(path)
}

func ConfFromConfig(cfg *Config) *Flow {
	return base.ConfFromConfig(cfg)
}

// Device runtime and options.
func NewDeviceRuntime(cfg *Config, opts ...DeviceRuntimeOption) (*DeviceRuntime, error) {
	return base.NewDeviceRuntime(cfg, opts...)
}

func WithChannel(ch Channel) DeviceRuntimeOption {
	return base.WithChannel(ch)
}

func WithClock(c Clock) DeviceRuntimeOption {
	return base.WithClock(c)
}

func WithIdentity(id Identity) DeviceRuntimeOption {
	return base.WithIdentity(id)
}

func WithSampler(s Sampler) DeviceRuntimeOption {
	return base.WithSampler(s)
}

func WithObservability(obs Observability) DeviceRuntimeOption {
	return base.WithObservability(obs)
}

func WithRegisterer(reg prometheus.Registerer) DeviceRuntimeOption {
	return base.WithRegisterer(reg)
}

func WithLogger(l *slog.Logger) DeviceRuntimeOption {
	return base.WithLogger(l)
}

// Channel adapters.
func NewCallbackChannel(name string, fn EventHandler) Channel {
	return base.NewCallbackChannel(name, fn)
}

func NewGoChannel(name string, buffer int) (Channel, <-chan Event, func()) {
	return base.NewGoChannel(name, buffer)
}
