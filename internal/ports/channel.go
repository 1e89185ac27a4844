package ports

import (
	"context"
	"fmt"
	"strings"
)

// Visibility is the scope an event is published under.
type Visibility uint8

const (
	Private Visibility = iota
	Public
)

func (v Visibility) String() string {
	if v == Public {
		return "PUBLIC"
	}
	return "PRIVATE"
}

// ParseVisibility accepts "private" or "public" in any case. Empty means Private.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "PRIVATE":
		return Private, nil
	case "PUBLIC":
		return Public, nil
	default:
		return Private, fmt.Errorf("unknown visibility %q", s)
	}
}

// Channel delivers a named event to a remote collector. Retry, transport and
// connectivity handling belong to the implementation.
type Channel interface {
	Publish(ctx context.Context, event string, payload []byte, vis Visibility) error
	Name() string
	Close() error
}
