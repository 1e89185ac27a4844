package spool

import (
	"context"
	"time"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

func (s *Spool) runDelivery() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		batch := s.queue.DequeueBatch(s.policy.MaxBatchSize)
		if len(batch) == 0 {
			if !s.pause(s.policy.IdleSleep) {
				return
			}
			continue
		}

		if !s.deliver(batch) {
			if !s.pause(s.policy.RetryDelay) {
				return
			}
		}
	}
}

// deliver forwards the batch in order and stops at the first failure, putting
// the undelivered tail back at the head of the queue.
func (s *Spool) deliver(batch []ports.QueuedEvent) bool {
	var (
		committed ports.WALEntryID
		ok        = true
	)

	for i, item := range batch {
		err := s.forward(item.Event)
		if err == nil {
			delete(s.attempts, item.ID)
			committed = item.ID
			s.obs.IncCounter(ports.MetricSpoolDeliveredTotal, 1)
			continue
		}

		s.attempts[item.ID]++
		if s.policy.MaxAttempts > 0 && s.attempts[item.ID] >= s.policy.MaxAttempts {
			delete(s.attempts, item.ID)
			committed = item.ID
			s.obs.RecordDrop(item.ID, item.Event, err)
			continue
		}

		s.obs.LogError("spool_delivery_failed", err,
			ports.Field{Key: "channel", Value: s.next.Name()},
			ports.Field{Key: "id", Value: uint64(item.ID)},
			ports.Field{Key: "attempt", Value: s.attempts[item.ID]})
		s.requeue(batch[i:])
		ok = false
		break
	}

	if committed > 0 {
		if err := s.wal.Commit(committed); err != nil {
			s.obs.LogError("wal_commit_failed", err)
		} else if s.queue.Len() == 0 {
			if err := s.wal.TruncateCommitted(); err != nil {
				s.obs.LogError("wal_truncate_failed", err)
			}
		}
	}
	return ok
}

func (s *Spool) forward(ev *ports.SpooledEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	return s.next.Publish(ctx, ev.Name, ev.Payload, ev.Visibility)
}

func (s *Spool) requeue(rest []ports.QueuedEvent) {
	if rq, ok := s.queue.(requeuer); ok {
		rq.Requeue(rest)
		return
	}
	// Without requeue support the tail stays in the WAL and is replayed on
	// the next start.
	s.obs.LogError("spool_requeue_unsupported", nil, ports.Field{Key: "events", Value: len(rest)})
}

func (s *Spool) pause(d time.Duration) bool {
	if d <= 0 {
		d = 5 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.stopCh:
		return false
	case <-t.C:
		return true
	}
}
