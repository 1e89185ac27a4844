package sampler

import (
	"github.com/ghalamif/PulseFlow/internal/domain"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Random simulates a vitals sensor by drawing uniformly from each range.
type Random struct {
	rng       ports.Random
	heartRate domain.Range
	spo2      domain.Range
}

func NewRandom(rng ports.Random, heartRate, spo2 domain.Range) *Random {
	return &Random{rng: rng, heartRate: heartRate, spo2: spo2}
}

func (r *Random) Sample() domain.Vitals {
	return domain.Vitals{
		HeartRate: r.rng.IntRange(r.heartRate.Min, r.heartRate.Max),
		SpO2:      r.rng.IntRange(r.spo2.Min, r.spo2.Max),
	}
}

var _ ports.Sampler = (*Random)(nil)
