package pulseflow

import (
	"context"
	"fmt"
)

// Flow assembles a DeviceRuntime from a Config plus the few adapters an
// embedding service usually swaps: where vitals come from and where the
// events go.
//
//	rt, err := pulseflow.ConfFromConfig(cfg).SampleFrom(strap).PublishFunc("ui", show).Runtime()
type Flow struct {
	cfg  *Config
	opts []DeviceRuntimeOption
}

// Conf loads a YAML config and starts a Flow from it.
func Conf(path string) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg), nil
}

// ConfFromConfig starts a Flow from an in-memory Config. A nil cfg is
// reported by Runtime.
func ConfFromConfig(cfg *Config) *Flow {
	return &Flow{cfg: cfg}
}

// Config returns the Config the runtime will be built from.
func (f *Flow) Config() *Config { return f.cfg }

// SampleFrom replaces the configured vitals source.
func (f *Flow) SampleFrom(s Sampler) *Flow {
	return f.With(WithSampler(s))
}

// PublishTo replaces the configured channel.
func (f *Flow) PublishTo(ch Channel) *Flow {
	return f.With(WithChannel(ch))
}

// PublishFunc delivers every event to fn instead of the configured channel.
func (f *Flow) PublishFunc(name string, fn EventHandler) *Flow {
	return f.PublishTo(NewCallbackChannel(name, fn))
}

// With appends any other runtime option (clock, identity, logger...).
func (f *Flow) With(opts ...DeviceRuntimeOption) *Flow {
	f.opts = append(f.opts, opts...)
	return f
}

// Runtime builds the DeviceRuntime. Options apply in the order they were
// added, so a later PublishTo wins over an earlier one.
func (f *Flow) Runtime() (*DeviceRuntime, error) {
	if f.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewDeviceRuntime(f.cfg, f.opts...)
}

// Run builds the runtime and blocks until ctx is cancelled.
func (f *Flow) Run(ctx context.Context) error {
	rt, err := f.Runtime()
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}
