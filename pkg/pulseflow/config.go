package pulseflow

import (
	"github.com/ghalamif/PulseFlow/internal/adapters/channel"
	"github.com/ghalamif/PulseFlow/internal/adapters/opcua"
	"github.com/ghalamif/PulseFlow/internal/app/config"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// DeviceConfig selects the device id or the file it is persisted in.
	DeviceConfig = config.DeviceConfig
	// PublisherConfig controls the event name, visibility and cadence.
	PublisherConfig = config.PublisherConfig
	// SamplerConfig selects where vitals come from.
	SamplerConfig = config.SamplerConfig
	// OPCUAConfig holds connection and node details for a bedside monitor.
	OPCUAConfig = opcua.Config
	// ChannelConfig selects the publish channel.
	ChannelConfig = config.ChannelConfig
	HTTPConfig    = channel.HTTPConfig
	KafkaConfig   = channel.KafkaConfig
	// TimescaleConfig configures the readings table channel.
	TimescaleConfig = channel.TimescaleConfig
	// SpoolConfig enables store-and-forward in front of the channel.
	SpoolConfig = config.SpoolConfig
	// Policy controls spool WAL and queue thresholds.
	Policy = ports.Policy
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	LogConfig     = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a valid configuration that logs simulated vitals.
func DefaultConfig() *Config {
	return config.Default()
}
