package domain

import (
	"errors"
	"fmt"
)

// ErrPublishFailed matches every PublishError.
var ErrPublishFailed = errors.New("pulseflow: publish failed")

// PublishError is the single failure class of a publish tick: the channel
// could not accept or transmit the payload.
type PublishError struct {
	Channel string
	Event   string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %q via %s: %v", e.Event, e.Channel, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool { return target == ErrPublishFailed }
