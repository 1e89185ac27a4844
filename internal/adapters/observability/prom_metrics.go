package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Metric names understood by PromObs. Unknown names are ignored.
const (
	PublishTotal        = ports.MetricPublishTotal
	PublishFailedTotal  = ports.MetricPublishFailedTotal
	PublishLatency      = ports.MetricPublishLatency
	LastHeartRate       = ports.MetricLastHeartRate
	LastSpO2            = ports.MetricLastSpO2
	SpoolQueueLength    = ports.MetricSpoolQueueLength
	SpoolWALSizeBytes   = ports.MetricSpoolWALSizeBytes
	SpoolDeliveredTotal = ports.MetricSpoolDeliveredTotal
	SpoolDroppedTotal   = ports.MetricSpoolDroppedTotal
	SamplerFallback     = ports.MetricSamplerFallback
	SamplerReconnects   = ports.MetricSamplerReconnects
)

// PromObs reports through Prometheus collectors and a structured logger.
type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the PulseFlow collectors on reg. A nil reg means
// prometheus.DefaultRegisterer and a nil logger means slog.Default().
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) (*PromObs, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: PublishTotal,
		Help: "Publish attempts made after the interval elapsed.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: PublishFailedTotal,
		Help: "Publish attempts the channel rejected or could not transmit.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    PublishLatency,
		Help:    "Time spent inside the publish channel per attempt.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	heartRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: LastHeartRate,
		Help: "Heart rate carried by the most recent publish attempt.",
	})
	spo2 := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: LastSpO2,
		Help: "Oxygen saturation carried by the most recent publish attempt.",
	})
	queueLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: SpoolQueueLength,
		Help: "Events waiting in the spool for delivery.",
	})
	walSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: SpoolWALSizeBytes,
		Help: "Size of the spool log on disk.",
	})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SpoolDeliveredTotal,
		Help: "Spooled events accepted by the downstream channel.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SpoolDroppedTotal,
		Help: "Spooled events discarded by backpressure policy or undeliverable.",
	})

	fallback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SamplerFallback,
		Help: "Samples that used simulated values because live readings were missing or stale.",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: SamplerReconnects,
		Help: "Sensor sessions re-established after a failure.",
	})

	for _, c := range []prometheus.Collector{published, failed, latency, heartRate, spo2, queueLen, walSize, delivered, dropped, fallback, reconnects} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			PublishTotal:        published,
			PublishFailedTotal:  failed,
			SpoolDeliveredTotal: delivered,
			SpoolDroppedTotal:   dropped,
			SamplerFallback:     fallback,
			SamplerReconnects:   reconnects,
		},
		gauges: map[string]prometheus.Gauge{
			LastHeartRate:     heartRate,
			LastSpO2:          spo2,
			SpoolQueueLength:  queueLen,
			SpoolWALSizeBytes: walSize,
		},
		histos: map[string]prometheus.Observer{
			PublishLatency: latency,
		},
	}, nil
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields, nil)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, attrs(fields, err)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields, err), slog.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDrop(id ports.WALEntryID, ev *ports.SpooledEvent, err error) {
	p.IncCounter(SpoolDroppedTotal, 1)
	if ev == nil {
		return
	}
	p.logger.Warn("spool_event_dropped", attrs([]ports.Field{
		{Key: "id", Value: uint64(id)},
		{Key: "event", Value: ev.Name},
	}, err)...)
}

func attrs(fields []ports.Field, err error) []any {
	out := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	if err != nil {
		out = append(out, slog.String("error", err.Error()))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
