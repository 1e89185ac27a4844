package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

const visibilityHeader = "visibility"

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel writes each event as one message keyed by event name.
type KafkaChannel struct {
	writer messageWriter
	topic  string
}

func NewKafkaChannel(cfg KafkaConfig) (*KafkaChannel, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka channel: brokers and topic are required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaChannel{writer: writer, topic: cfg.Topic}, nil
}

func (c *KafkaChannel) Publish(ctx context.Context, event string, payload []byte, vis ports.Visibility) error {
	return c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event),
		Value: payload,
		Headers: []kafka.Header{
			{Key: visibilityHeader, Value: []byte(vis.String())},
		},
	})
}

func (c *KafkaChannel) Name() string { return "kafka:" + c.topic }

func (c *KafkaChannel) Close() error { return c.writer.Close() }

var _ ports.Channel = (*KafkaChannel)(nil)
