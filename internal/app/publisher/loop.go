package publisher

import (
	"context"
	"time"
)

// Run polls Tick on a ticker until ctx is cancelled. Each due publish gets its
// own context bounded by publishTimeout (no bound when <= 0).
func (p *Publisher) Run(ctx context.Context, pollInterval, publishTimeout time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		p.poll(ctx, publishTimeout)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Publisher) poll(ctx context.Context, publishTimeout time.Duration) {
	now := p.deps.Clock.NowMillis()
	if !p.Due(now) {
		return
	}

	pubCtx := ctx
	if publishTimeout > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}
	p.Tick(pubCtx, now)
}
