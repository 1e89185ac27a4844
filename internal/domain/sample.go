package domain

// TelemetrySample is one vitals reading as it leaves the device.
// Field order is the wire order of the published payload.
type TelemetrySample struct {
	DeviceID  string `json:"deviceId"`
	HeartRate int    `json:"hr"`
	SpO2      int    `json:"spo2"`
	Timestamp int64  `json:"ts"`
}

// Vitals is the pair of readings produced by a sampler.
type Vitals struct {
	HeartRate int
	SpO2      int
}

// Range is an inclusive integer interval.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp pins v to the range bounds.
func (r Range) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

var (
	// DefaultHeartRateRange is the plausible resting heart rate band, in beats per minute.
	DefaultHeartRateRange = Range{Min: 65, Max: 95}
	// DefaultSpO2Range is the healthy oxygen saturation band, in percent.
	DefaultSpO2Range = Range{Min: 96, Max: 100}

	// MeasurableHeartRate and MeasurableSpO2 bound what a sensor can report.
	// Live readings are pinned to them; simulated ones use the defaults above.
	MeasurableHeartRate = Range{Min: 0, Max: 300}
	MeasurableSpO2      = Range{Min: 0, Max: 100}
)

// NewSample assembles a sample from its four parts.
func NewSample(deviceID string, v Vitals, ts int64) TelemetrySample {
	return TelemetrySample{
		DeviceID:  deviceID,
		HeartRate: v.HeartRate,
		SpO2:      v.SpO2,
		Timestamp: ts,
	}
}
