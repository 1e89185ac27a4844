// Package publisher implements the device's telemetry cadence: on each tick
// it checks whether the publish interval has elapsed and, if so, samples
// vitals and hands one fixed-schema event to the publish channel.
//
// A Publisher is owned by a single polling loop. Its state is never shared,
// so it carries no locks; run one loop per Publisher.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

const DefaultEventName = "hb"

// Config is the fixed part of a publisher.
type Config struct {
	EventName  string
	Visibility ports.Visibility
	Interval   time.Duration
}

// Deps are the collaborators a publisher calls on every due tick.
type Deps struct {
	Clock    ports.Clock
	Identity ports.Identity
	Sampler  ports.Sampler
	Channel  ports.Channel
	Obs      ports.Observability
}

// Result describes one publish attempt. Err is nil on success and a
// *domain.PublishError when the channel failed.
type Result struct {
	Sample  domain.TelemetrySample
	Payload []byte
	Err     error
}

type Publisher struct {
	eventName  string
	visibility ports.Visibility
	intervalMs uint64

	// lastPublish is the monotonic time of the latest publish attempt.
	lastPublish uint64

	deps Deps
}

func New(cfg Config, deps Deps) (*Publisher, error) {
	if cfg.Interval < time.Millisecond {
		return nil, fmt.Errorf("publisher: interval must be at least 1ms, got %s", cfg.Interval)
	}
	if deps.Clock == nil || deps.Identity == nil || deps.Sampler == nil || deps.Channel == nil || deps.Obs == nil {
		return nil, fmt.Errorf("publisher: clock, identity, sampler, channel and observability are required")
	}
	if cfg.EventName == "" {
		cfg.EventName = DefaultEventName
	}
	return &Publisher{
		eventName:  cfg.EventName,
		visibility: cfg.Visibility,
		intervalMs: uint64(cfg.Interval / time.Millisecond),
		deps:       deps,
	}, nil
}

// Due reports whether a Tick at now would publish. A now earlier than the
// last publish is never due.
func (p *Publisher) Due(now uint64) bool {
	return now >= p.lastPublish && now-p.lastPublish >= p.intervalMs
}

// LastPublish returns the monotonic timestamp of the latest attempt.
func (p *Publisher) LastPublish() uint64 { return p.lastPublish }

func (p *Publisher) Interval() time.Duration {
	return time.Duration(p.intervalMs) * time.Millisecond
}

// Tick publishes one event if the interval has elapsed since the last
// attempt and reports whether it did. The timer is reset on every attempt,
// failed or not, so a failure never shifts the cadence and is never retried.
func (p *Publisher) Tick(ctx context.Context, now uint64) (Result, bool) {
	if !p.Due(now) {
		return Result{}, false
	}
	p.lastPublish = now

	sample := domain.NewSample(p.deps.Identity.DeviceID(), p.deps.Sampler.Sample(), p.deps.Clock.WallClock())
	res := Result{Sample: sample}

	payload, err := domain.EncodePayload(sample)
	if err != nil {
		res.Err = err
		p.deps.Obs.LogCritical("payload_encode_failed", err)
		return res, true
	}
	res.Payload = payload

	start := time.Now()
	err = p.deps.Channel.Publish(ctx, p.eventName, payload, p.visibility)
	p.deps.Obs.ObserveLatency(ports.MetricPublishLatency, time.Since(start).Seconds())
	p.deps.Obs.IncCounter(ports.MetricPublishTotal, 1)
	p.deps.Obs.SetGauge(ports.MetricLastHeartRate, float64(sample.HeartRate))
	p.deps.Obs.SetGauge(ports.MetricLastSpO2, float64(sample.SpO2))

	if err != nil {
		res.Err = &domain.PublishError{Channel: p.deps.Channel.Name(), Event: p.eventName, Err: err}
		p.deps.Obs.IncCounter(ports.MetricPublishFailedTotal, 1)
		p.deps.Obs.LogError("publish_failed", res.Err,
			ports.Field{Key: "event", Value: p.eventName},
			ports.Field{Key: "device_id", Value: sample.DeviceID})
		return res, true
	}

	p.deps.Obs.LogInfo("telemetry_published",
		ports.Field{Key: "event", Value: p.eventName},
		ports.Field{Key: "channel", Value: p.deps.Channel.Name()},
		ports.Field{Key: "hr", Value: sample.HeartRate},
		ports.Field{Key: "spo2", Value: sample.SpO2})
	return res, true
}
