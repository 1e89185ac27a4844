package clock

import (
	"time"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// System measures monotonic milliseconds from its own creation, which stands
// in for time since boot.
type System struct {
	start time.Time
}

func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) NowMillis() uint64 {
	return uint64(time.Since(s.start).Milliseconds())
}

func (s *System) WallClock() int64 {
	return time.Now().Unix()
}

var _ ports.Clock = (*System)(nil)
