package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/PulseFlow/internal/adapters/channel"
	"github.com/ghalamif/PulseFlow/internal/adapters/opcua"
	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

const (
	ChannelLog       = "log"
	ChannelHTTP      = "http"
	ChannelKafka     = "kafka"
	ChannelTimescale = "timescale"

	SamplerRandom = "random"
	SamplerOPCUA  = "opcua"
)

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Publisher PublisherConfig `yaml:"publisher"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Channel   ChannelConfig   `yaml:"channel"`
	Spool     SpoolConfig     `yaml:"spool"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

type DeviceConfig struct {
	ID           string `yaml:"id"`
	IdentityFile string `yaml:"identity_file"`
}

type PublisherConfig struct {
	EventName      string        `yaml:"event_name"`
	Visibility     string        `yaml:"visibility"`
	Interval       time.Duration `yaml:"interval"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	HeartRate      domain.Range  `yaml:"heart_rate"`
	SpO2           domain.Range  `yaml:"spo2"`
	Seed           uint64        `yaml:"seed"`
}

type SamplerConfig struct {
	Kind  string       `yaml:"kind"`
	OPCUA opcua.Config `yaml:"opcua"`
}

type ChannelConfig struct {
	Kind      string                  `yaml:"kind"`
	HTTP      channel.HTTPConfig      `yaml:"http"`
	Kafka     channel.KafkaConfig     `yaml:"kafka"`
	Timescale channel.TimescaleConfig `yaml:"timescale"`
}

type SpoolConfig struct {
	Enabled bool         `yaml:"enabled"`
	Dir     string       `yaml:"dir"`
	Policy  ports.Policy `yaml:"policy"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration that publishes simulated vitals to the log
// every 30 seconds.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.Device.IdentityFile == "" {
		c.Device.IdentityFile = "./data/device_id"
	}

	p := &c.Publisher
	if p.EventName == "" {
		p.EventName = "hb"
	}
	if p.Visibility == "" {
		p.Visibility = "private"
	}
	if p.Interval == 0 {
		p.Interval = 30 * time.Second
	}
	if p.PollInterval == 0 {
		p.PollInterval = 100 * time.Millisecond
	}
	if p.PublishTimeout == 0 {
		p.PublishTimeout = 5 * time.Second
	}
	if p.HeartRate == (domain.Range{}) {
		p.HeartRate = domain.DefaultHeartRateRange
	}
	if p.SpO2 == (domain.Range{}) {
		p.SpO2 = domain.DefaultSpO2Range
	}

	if c.Sampler.Kind == "" {
		c.Sampler.Kind = SamplerRandom
	}
	if c.Sampler.Kind == SamplerOPCUA {
		if c.Sampler.OPCUA.MaxAge == 0 {
			c.Sampler.OPCUA.MaxAge = 3 * p.Interval
		}
		c.Sampler.OPCUA.ApplyDefaults()
	}

	if c.Channel.Kind == "" {
		c.Channel.Kind = ChannelLog
	}
	if c.Channel.HTTP.Timeout == 0 {
		c.Channel.HTTP.Timeout = 10 * time.Second
	}
	if c.Channel.Kafka.Topic == "" {
		c.Channel.Kafka.Topic = "vitals"
	}
	if c.Channel.Timescale.Table == "" {
		c.Channel.Timescale.Table = "readings"
	}

	if c.Spool.Dir == "" {
		c.Spool.Dir = "./data/spool"
	}
	c.Spool.Policy.ApplyDefaults()

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	p := c.Publisher
	if p.Interval < time.Millisecond {
		return fmt.Errorf("publisher.interval must be at least 1ms")
	}
	if p.PollInterval <= 0 || p.PollInterval > p.Interval {
		return fmt.Errorf("publisher.poll_interval must be in (0, interval]")
	}
	if p.PublishTimeout < 0 {
		return fmt.Errorf("publisher.publish_timeout must be >= 0")
	}
	if _, err := ports.ParseVisibility(p.Visibility); err != nil {
		return fmt.Errorf("publisher.visibility: %w", err)
	}
	if p.HeartRate.Min <= 0 || p.HeartRate.Min > p.HeartRate.Max {
		return fmt.Errorf("publisher.heart_rate: invalid range [%d,%d]", p.HeartRate.Min, p.HeartRate.Max)
	}
	if p.SpO2.Min < 0 || p.SpO2.Max > 100 || p.SpO2.Min > p.SpO2.Max {
		return fmt.Errorf("publisher.spo2: invalid range [%d,%d]", p.SpO2.Min, p.SpO2.Max)
	}

	switch c.Sampler.Kind {
	case SamplerRandom:
	case SamplerOPCUA:
		if err := c.Sampler.OPCUA.Validate(); err != nil {
			return fmt.Errorf("sampler.opcua: %w", err)
		}
	default:
		return fmt.Errorf("sampler.kind: unknown sampler %q", c.Sampler.Kind)
	}

	switch c.Channel.Kind {
	case ChannelLog:
	case ChannelHTTP:
		if c.Channel.HTTP.URL == "" {
			return fmt.Errorf("channel.http.url is required")
		}
	case ChannelKafka:
		if len(c.Channel.Kafka.Brokers) == 0 {
			return fmt.Errorf("channel.kafka.brokers is required")
		}
	case ChannelTimescale:
		if c.Channel.Timescale.ConnString == "" {
			return fmt.Errorf("channel.timescale.conn_string is required")
		}
	default:
		return fmt.Errorf("channel.kind: unknown channel %q", c.Channel.Kind)
	}

	if c.Spool.Enabled && c.Spool.Dir == "" {
		return fmt.Errorf("spool.dir is required when spool is enabled")
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// PublisherVisibility returns the parsed visibility. Validate must have passed.
func (c *Config) PublisherVisibility() ports.Visibility {
	v, _ := ports.ParseVisibility(c.Publisher.Visibility)
	return v
}
