package channel

import (
	"context"
	"log/slog"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// LogChannel writes each event to a logger, the hosted equivalent of a serial
// console. It never fails.
type LogChannel struct {
	logger *slog.Logger
}

func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Publish(ctx context.Context, event string, payload []byte, vis ports.Visibility) error {
	c.logger.InfoContext(ctx, "event_published",
		slog.String("event", event),
		slog.String("visibility", vis.String()),
		slog.String("payload", string(payload)))
	return nil
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Close() error { return nil }

var _ ports.Channel = (*LogChannel)(nil)
