package ports

import "github.com/ghalamif/PulseFlow/internal/domain"

// Clock supplies monotonic milliseconds for interval checks and wall-clock
// seconds for payload timestamps.
type Clock interface {
	NowMillis() uint64
	WallClock() int64
}

type Identity interface {
	DeviceID() string
}

// Random draws integers from [min, max], both ends included.
type Random interface {
	IntRange(min, max int) int
}

// Sampler produces the vitals for one publish tick.
type Sampler interface {
	Sample() domain.Vitals
}
