package pulseflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelClosed is returned when a go channel adapter is published to after being closed.
var ErrChannelClosed = errors.New("pulseflow: channel closed")

// Event is one publish call as seen by callback and go channel adapters.
type Event struct {
	Name       string
	Visibility Visibility
	Payload    []byte
	// Sample is the decoded payload. It is zero when the payload is not a
	// telemetry sample.
	Sample TelemetrySample
}

// EventHandler receives every publish call made through a callback channel.
type EventHandler func(context.Context, Event) error

// NewCallbackChannel adapts an EventHandler into a full Channel so callers
// can plug arbitrary functions without defining structs.
func NewCallbackChannel(name string, fn EventHandler) Channel {
	if name == "" {
		name = "callback"
	}
	return &callbackChannel{name: name, fn: fn}
}

// NewGoChannel exposes events via a Go channel; it returns the Channel, the
// read-only stream and a close function the caller should invoke during
// shutdown. Publish blocks while the buffer is full, bounded by its context.
func NewGoChannel(name string, buffer int) (Channel, <-chan Event, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Event, buffer)
	c := &goChannel{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return c, ch, c.close
}

type callbackChannel struct {
	name string
	fn   EventHandler
}

func (c *callbackChannel) Publish(ctx context.Context, event string, payload []byte, vis Visibility) error {
	if c.fn == nil {
		return fmt.Errorf("callback channel %q: nil handler", c.name)
	}
	return c.fn(ctx, newEvent(event, payload, vis))
}

func (c *callbackChannel) Name() string { return c.name }

func (c *callbackChannel) Close() error { return nil }

type goChannel struct {
	name   string
	mu     sync.RWMutex
	ch     chan Event
	closed chan struct{}
	once   sync.Once
}

func (c *goChannel) Publish(ctx context.Context, event string, payload []byte, vis Visibility) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}

	select {
	case <-c.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.ch <- newEvent(event, payload, vis):
		return nil
	}
}

func (c *goChannel) Name() string { return c.name }

// Close is a no-op so the runtime does not close a stream the caller owns;
// use the close function returned by NewGoChannel.
func (c *goChannel) Close() error { return nil }

func (c *goChannel) close() {
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		close(c.ch)
		c.mu.Unlock()
	})
}

func newEvent(name string, payload []byte, vis Visibility) Event {
	ev := Event{
		Name:       name,
		Visibility: vis,
		Payload:    append([]byte(nil), payload...),
	}
	if s, err := DecodePayload(payload); err == nil {
		ev.Sample = s
	}
	return ev
}
