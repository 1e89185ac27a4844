package opcua

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session
// against a bedside monitor or gateway that exposes vitals as nodes.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	HeartRateNode    string        `yaml:"heart_rate_node"`
	SpO2Node         string        `yaml:"spo2_node"`

	// MaxAge is how long a reading counts as live after it was reported.
	MaxAge            time.Duration `yaml:"max_age"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "PulseFlow Edge"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = time.Second
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 90 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		c.MaxReconnectDelay = 30 * time.Second
		if c.MaxReconnectDelay < c.ReconnectDelay {
			c.MaxReconnectDelay = c.ReconnectDelay
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.HeartRateNode == "" || c.SpO2Node == "" {
		return errors.New("heart_rate_node and spo2_node are required")
	}
	return nil
}

const (
	handleHeartRate uint32 = 1
	handleSpO2      uint32 = 2
)

var (
	errIdle   = errors.New("opcua subscription idle")
	errClosed = errors.New("opcua notification channel closed")
)

type reading struct {
	value int
	at    time.Time
	ok    bool
}

// Sampler keeps the latest heart rate and SpO2 values pushed by an OPC UA
// subscription. A node that has not reported within MaxAge is taken from
// fallback, and every such sample is counted. The session is re-established
// with exponential backoff whenever it fails or goes quiet.
type Sampler struct {
	cfg      Config
	fallback ports.Sampler
	obs      ports.Observability
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	heartRate  reading
	spo2       reading
	lastUpdate time.Time
	degraded   bool
	started    bool
}

func NewSampler(cfg Config, fallback ports.Sampler, obs ports.Observability) (*Sampler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fallback == nil {
		return nil, errors.New("fallback sampler is required")
	}
	if obs == nil {
		return nil, errors.New("observability is required")
	}
	return &Sampler{cfg: cfg, fallback: fallback, obs: obs, now: time.Now}, nil
}

func (s *Sampler) Sample() domain.Vitals {
	now := s.now()

	s.mu.Lock()
	hrLive := s.fresh(s.heartRate, now)
	spo2Live := s.fresh(s.spo2, now)
	hr, spo2 := s.heartRate.value, s.spo2.value
	live := hrLive && spo2Live
	changed := s.degraded == live
	s.degraded = !live
	s.mu.Unlock()

	if changed {
		if live {
			s.obs.LogInfo("opcua_readings_live", ports.Field{Key: "endpoint", Value: s.cfg.Endpoint})
		} else {
			s.obs.LogError("opcua_fallback_active", errors.New("live readings missing or stale"),
				ports.Field{Key: "endpoint", Value: s.cfg.Endpoint},
				ports.Field{Key: "heart_rate_live", Value: hrLive},
				ports.Field{Key: "spo2_live", Value: spo2Live})
		}
	}

	if live {
		return domain.Vitals{HeartRate: hr, SpO2: spo2}
	}
	s.obs.IncCounter(ports.MetricSamplerFallback, 1)
	v := s.fallback.Sample()
	if hrLive {
		v.HeartRate = hr
	}
	if spo2Live {
		v.SpO2 = spo2
	}
	return v
}

func (s *Sampler) fresh(r reading, now time.Time) bool {
	return r.ok && now.Sub(r.at) <= s.cfg.MaxAge
}

// Start launches the session loop and returns. Connection failures are
// retried in the background until Stop.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("opcua sampler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

func (s *Sampler) run(ctx context.Context) {
	defer s.wg.Done()

	delay := s.cfg.ReconnectDelay
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			s.obs.IncCounter(ports.MetricSamplerReconnects, 1)
		}
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		s.invalidate()
		if connected {
			delay = s.cfg.ReconnectDelay
		}
		s.obs.LogError("opcua_session_failed", err,
			ports.Field{Key: "endpoint", Value: s.cfg.Endpoint},
			ports.Field{Key: "retry_in", Value: delay.String()})

		if !sleepCtx(ctx, delay) {
			return
		}
		delay = nextBackoff(delay, s.cfg.MaxReconnectDelay)
	}
}

// session connects, subscribes to both vitals nodes and consumes
// notifications until the session fails or ctx ends. connected reports
// whether the subscription was fully set up.
func (s *Sampler) session(ctx context.Context) (connected bool, err error) {
	client, err := opcua.NewClient(s.cfg.Endpoint, s.buildClientOptions()...)
	if err != nil {
		return false, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return false, fmt.Errorf("opcua connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if e := client.Close(closeCtx); e != nil && !errors.Is(e, context.Canceled) {
			s.obs.LogError("opcua_close_failed", e)
		}
	}()

	notifyCh := make(chan *opcua.PublishNotificationData, 8)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: s.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		return false, fmt.Errorf("opcua subscribe: %w", err)
	}
	defer func() {
		cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sub.Cancel(cancelCtx)
	}()

	for _, h := range []struct {
		handle uint32
		node   string
	}{{handleHeartRate, s.cfg.HeartRateNode}, {handleSpO2, s.cfg.SpO2Node}} {
		if err := s.monitor(ctx, sub, h.handle, h.node); err != nil {
			return false, err
		}
	}

	s.mu.Lock()
	s.lastUpdate = s.now()
	s.mu.Unlock()
	s.obs.LogInfo("opcua_session_established", ports.Field{Key: "endpoint", Value: s.cfg.Endpoint})

	return true, s.consume(ctx, notifyCh)
}

func (s *Sampler) monitor(ctx context.Context, sub *opcua.Subscription, handle uint32, node string) error {
	nodeID, err := ua.ParseNodeID(node)
	if err != nil {
		return fmt.Errorf("parse node id %q: %w", node, err)
	}
	req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
	if s.cfg.SamplingInterval > 0 {
		req.RequestedParameters.SamplingInterval = float64(s.cfg.SamplingInterval / time.Millisecond)
	}
	res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
	if err != nil {
		return fmt.Errorf("monitor node %q: %w", node, err)
	}
	if len(res.Results) == 0 {
		return fmt.Errorf("monitor node %q failed: empty result", node)
	}
	if res.Results[0].StatusCode != ua.StatusOK {
		return fmt.Errorf("monitor node %q failed: %s", node, res.Results[0].StatusCode)
	}
	return nil
}

func (s *Sampler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.started = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	return nil
}

// consume applies notifications until one reports an error, the channel
// closes or nothing arrives for half of MaxAge. Resubscribing makes the
// server resend current values, so a quiet but healthy monitor is refreshed
// before its readings expire.
func (s *Sampler) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData) error {
	watchdog := time.NewTicker(max(s.cfg.MaxAge/2, time.Millisecond))
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-ch:
			if !ok {
				return errClosed
			}
			if err := s.handle(notif); err != nil {
				return err
			}
		case <-watchdog.C:
			if s.idle(s.now()) >= s.cfg.MaxAge/2 {
				return errIdle
			}
		}
	}
}

// handle applies one notification. An error notification drops the cached
// readings so they are not republished as live.
func (s *Sampler) handle(notif *opcua.PublishNotificationData) error {
	if notif == nil {
		return nil
	}
	if notif.Error != nil {
		s.invalidate()
		return fmt.Errorf("opcua notification: %w", notif.Error)
	}
	s.processNotification(notif.Value)
	return nil
}

func (s *Sampler) processNotification(val interface{}) {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return
	}

	for _, item := range data.MonitoredItems {
		if item == nil || item.Value == nil {
			continue
		}
		fv, ok := variantToFloat(item.Value.Value)
		if !ok {
			s.obs.LogError("opcua_unsupported_value", fmt.Errorf("type %T", item.Value.Value),
				ports.Field{Key: "handle", Value: item.ClientHandle})
			continue
		}
		v := int(math.Round(fv))
		now := s.now()

		s.mu.Lock()
		switch item.ClientHandle {
		case handleHeartRate:
			s.heartRate = reading{value: domain.MeasurableHeartRate.Clamp(v), at: now, ok: true}
			s.lastUpdate = now
		case handleSpO2:
			s.spo2 = reading{value: domain.MeasurableSpO2.Clamp(v), at: now, ok: true}
			s.lastUpdate = now
		}
		s.mu.Unlock()
	}
}

func (s *Sampler) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartRate, s.spo2 = reading{}, reading{}
}

func (s *Sampler) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUpdate)
}

func nextBackoff(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Sampler) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(s.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(s.cfg.SecurityPolicy)),
		opcua.ApplicationName(s.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if s.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(s.cfg.Username, s.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Sampler = (*Sampler)(nil)
