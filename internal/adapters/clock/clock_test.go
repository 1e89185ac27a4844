package clock

import (
	"testing"
	"time"
)

func TestSystemClockIsMonotonic(t *testing.T) {
	c := NewSystem()

	first := c.NowMillis()
	time.Sleep(5 * time.Millisecond)
	second := c.NowMillis()

	if second < first+5 {
		t.Fatalf("expected at least 5ms to elapse, got %d -> %d", first, second)
	}
}

func TestSystemWallClock(t *testing.T) {
	c := NewSystem()
	before := time.Now().Unix()
	got := c.WallClock()
	after := time.Now().Unix()

	if got < before || got > after {
		t.Fatalf("wall clock %d outside [%d, %d]", got, before, after)
	}
}
