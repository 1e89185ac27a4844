package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaChannelWritesKeyedMessage(t *testing.T) {
	w := &recordingWriter{}
	ch := &KafkaChannel{writer: w, topic: "vitals"}

	if err := ch.Publish(context.Background(), "hb", []byte(`{"hr":70}`), ports.Public); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "hb" || string(msg.Value) != `{"hr":70}` {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "PUBLIC" {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
	if ch.Name() != "kafka:vitals" {
		t.Fatalf("unexpected name %q", ch.Name())
	}

	if err := ch.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to be closed, err=%v", err)
	}
}

func TestKafkaChannelSurfacesWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	ch := &KafkaChannel{writer: &recordingWriter{err: boom}, topic: "vitals"}

	if err := ch.Publish(context.Background(), "hb", nil, ports.Private); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestNewKafkaChannelValidates(t *testing.T) {
	if _, err := NewKafkaChannel(KafkaConfig{Topic: "vitals"}); err == nil {
		t.Fatalf("expected error without brokers")
	}
	ch, err := NewKafkaChannel(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "vitals"})
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	_ = ch.Close()
}
