package pulseflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/PulseFlow/internal/adapters/channel"
	"github.com/ghalamif/PulseFlow/internal/adapters/clock"
	"github.com/ghalamif/PulseFlow/internal/adapters/identity"
	"github.com/ghalamif/PulseFlow/internal/adapters/observability"
	"github.com/ghalamif/PulseFlow/internal/adapters/opcua"
	"github.com/ghalamif/PulseFlow/internal/adapters/queue"
	"github.com/ghalamif/PulseFlow/internal/adapters/random"
	"github.com/ghalamif/PulseFlow/internal/adapters/sampler"
	"github.com/ghalamif/PulseFlow/internal/adapters/wal"
	"github.com/ghalamif/PulseFlow/internal/app/config"
	"github.com/ghalamif/PulseFlow/internal/app/publisher"
	"github.com/ghalamif/PulseFlow/internal/app/spool"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// DeviceRuntimeOption customizes the dependencies used by DeviceRuntime.
type DeviceRuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	channel    Channel
	clock      Clock
	identity   Identity
	sampler    Sampler
	obs        Observability
	registerer prometheus.Registerer
	logger     *slog.Logger
}

// WithChannel injects a custom publish channel (MQTT, a cloud SDK, tests, etc.).
func WithChannel(ch Channel) DeviceRuntimeOption {
	return func(o *runtimeOverrides) {
		o.channel = ch
	}
}

// WithClock replaces the process clock.
func WithClock(c Clock) DeviceRuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = c
	}
}

// WithIdentity overrides the configured or persisted device id.
func WithIdentity(id Identity) DeviceRuntimeOption {
	return func(o *runtimeOverrides) {
		o.identity = id
	}
}

// WithSampler plugs in a custom vitals source.
func WithSampler(s Sampler) DeviceRuntimeOption {
	return func(o *runtimeOverrides) {
		o.sampler = s
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) DeviceRuntimeOption {
	return func(o *runtimeOverrides) {
		o.obs = obs
	}
}

// WithRegisterer registers the runtime's metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) DeviceRuntimeOption {
	return func(o *runtimeOverrides) {
		o.registerer = reg
	}
}

// WithLogger sets the logger used by the default observability and log channel.
func WithLogger(l *slog.Logger) DeviceRuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

type lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
}

// DeviceRuntime wires clock, identity, sampler and channel into a publisher
// and exposes simple lifecycle hooks for embedding PulseFlow inside any Go
// service.
type DeviceRuntime struct {
	cfg       *Config
	logger    *slog.Logger
	obs       ports.Observability
	gatherer  prometheus.Gatherer
	clock     ports.Clock
	identity  ports.Identity
	sampler   ports.Sampler
	channel   ports.Channel
	spool     *spool.Spool
	publisher *publisher.Publisher

	metricsSrv  *http.Server
	gaugeStopCh chan struct{}
	loopCancel  context.CancelFunc
	loopDoneCh  chan struct{}
	started     bool
	mu          sync.Mutex
}

// NewDeviceRuntime bootstraps the default adapters (system clock, persisted
// identity, random or OPC UA sampler, configured channel, optional spool,
// Prometheus observability). Options override any of them.
func NewDeviceRuntime(cfg *Config, opts ...DeviceRuntimeOption) (*DeviceRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	logger := overrides.logger
	if logger == nil {
		logger = slog.Default()
	}

	var gatherer prometheus.Gatherer
	obs := overrides.obs
	if obs == nil {
		reg := overrides.registerer
		if reg == nil {
			private := prometheus.NewRegistry()
			reg, gatherer = private, private
		} else if g, ok := reg.(prometheus.Gatherer); ok {
			gatherer = g
		}
		prom, err := observability.NewPromObs(reg, logger)
		if err != nil {
			return nil, err
		}
		obs = prom
	}

	clk := overrides.clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	id := overrides.identity
	if id == nil {
		resolved, err := identity.Resolve(cfg.Device.ID, cfg.Device.IdentityFile)
		if err != nil {
			return nil, err
		}
		id = resolved
	}

	smp := overrides.sampler
	if smp == nil {
		built, err := buildSampler(cfg, obs)
		if err != nil {
			return nil, err
		}
		smp = built
	}

	ch := overrides.channel
	if ch == nil {
		built, err := buildChannel(cfg, logger)
		if err != nil {
			return nil, err
		}
		ch = built
	}

	var sp *spool.Spool
	if cfg.Spool.Enabled {
		w, err := wal.NewFileWAL(cfg.Spool.Dir)
		if err != nil {
			_ = ch.Close()
			return nil, err
		}
		sp, err = spool.New(w, queue.NewMemQueue(cfg.Spool.Policy.MaxQueueLen), ch, cfg.Spool.Policy, obs)
		if err != nil {
			_ = errors.Join(w.Close(), ch.Close())
			return nil, err
		}
		ch = sp
	}

	pub, err := publisher.New(publisher.Config{
		EventName:  cfg.Publisher.EventName,
		Visibility: cfg.PublisherVisibility(),
		Interval:   cfg.Publisher.Interval,
	}, publisher.Deps{
		Clock:    clk,
		Identity: id,
		Sampler:  smp,
		Channel:  ch,
		Obs:      obs,
	})
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &DeviceRuntime{
		cfg:       cfg,
		logger:    logger,
		obs:       obs,
		gatherer:  gatherer,
		clock:     clk,
		identity:  id,
		sampler:   smp,
		channel:   ch,
		spool:     sp,
		publisher: pub,
	}, nil
}

func buildSampler(cfg *Config, obs ports.Observability) (ports.Sampler, error) {
	var rng ports.Random
	if cfg.Publisher.Seed != 0 {
		rng = random.NewSeeded(cfg.Publisher.Seed)
	} else {
		rng = random.New()
	}
	fallback := sampler.NewRandom(rng, cfg.Publisher.HeartRate, cfg.Publisher.SpO2)

	switch cfg.Sampler.Kind {
	case "", config.SamplerRandom:
		return fallback, nil
	case config.SamplerOPCUA:
		return opcua.NewSampler(cfg.Sampler.OPCUA, fallback, obs)
	default:
		return nil, fmt.Errorf("unknown sampler %q", cfg.Sampler.Kind)
	}
}

func buildChannel(cfg *Config, logger *slog.Logger) (ports.Channel, error) {
	switch cfg.Channel.Kind {
	case "", config.ChannelLog:
		return channel.NewLogChannel(logger), nil
	case config.ChannelHTTP:
		return channel.NewHTTPChannel(cfg.Channel.HTTP, nil)
	case config.ChannelKafka:
		return channel.NewKafkaChannel(cfg.Channel.Kafka)
	case config.ChannelTimescale:
		db, err := sql.Open("postgres", cfg.Channel.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		ch, err := channel.NewTimescaleChannel(db, cfg.Channel.Timescale.Table)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return ch, nil
	default:
		return nil, fmt.Errorf("unknown channel %q", cfg.Channel.Kind)
	}
}

// Publisher exposes the underlying publisher, mainly for manual Tick calls.
func (r *DeviceRuntime) Publisher() *Publisher {
	if r == nil {
		return nil
	}
	return r.publisher
}

// Start launches the publish loop, the sampler subscription and the metrics
// server. It returns immediately; call Run to block on a context instead.
func (r *DeviceRuntime) Start() error {
	if r == nil {
		return fmt.Errorf("device runtime is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("device runtime already started")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	if lc, ok := r.sampler.(lifecycle); ok {
		if err := lc.Start(loopCtx); err != nil {
			cancel()
			return fmt.Errorf("start sampler: %w", err)
		}
	}

	r.loopCancel = cancel
	r.loopDoneCh = make(chan struct{})
	go func() {
		defer close(r.loopDoneCh)
		r.publisher.Run(loopCtx, r.cfg.Publisher.PollInterval, r.cfg.Publisher.PublishTimeout)
	}()

	r.startMetrics()
	r.started = true

	r.obs.LogInfo("runtime_started",
		ports.Field{Key: "device_id", Value: r.identity.DeviceID()},
		ports.Field{Key: "channel", Value: r.channel.Name()},
		ports.Field{Key: "interval", Value: r.publisher.Interval().String()})
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (r *DeviceRuntime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the publish loop, sampler and metrics server, then closes
// the channel. A spool flushes what it can and keeps the rest on disk.
func (r *DeviceRuntime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error

	if r.loopCancel != nil {
		r.loopCancel()
		select {
		case <-r.loopDoneCh:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
		r.loopCancel = nil
	}

	if r.gaugeStopCh != nil {
		close(r.gaugeStopCh)
		r.gaugeStopCh = nil
	}

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		r.metricsSrv = nil
	}

	if lc, ok := r.sampler.(lifecycle); ok && r.started {
		if err := lc.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.spool != nil {
		if err := r.spool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	} else if err := r.channel.Close(); err != nil {
		errs = append(errs, err)
	}
	r.started = false

	return errors.Join(errs...)
}

func (r *DeviceRuntime) startMetrics() {
	handler := promhttp.Handler()
	if r.gatherer != nil {
		handler = promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.metricsSrv = srv

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server exited", slog.Any("err", err))
		}
	}()

	if r.spool != nil {
		r.gaugeStopCh = make(chan struct{})
		go r.recordSpoolGauges(r.gaugeStopCh, time.Second)
	}
}

func (r *DeviceRuntime) recordSpoolGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := r.spool.WALStats()
			r.obs.SetGauge(ports.MetricSpoolWALSizeBytes, float64(stats.SizeBytes))
			r.obs.SetGauge(ports.MetricSpoolQueueLength, float64(r.spool.Len()))
		}
	}
}
