// Package spool puts a durable store-and-forward stage in front of any
// publish channel: events are appended to a write-ahead log, buffered in a
// bounded queue and delivered in order by a background loop that retries
// until the downstream channel accepts them.
package spool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

var (
	// ErrQueueFull indicates the queue rejected the event according to policy.
	ErrQueueFull = errors.New("spool: queue full")
	// ErrSpoolFull indicates the WAL is at capacity and OnWALFull != "block".
	ErrSpoolFull = errors.New("spool: wal full")
)

const deliveryTimeout = 10 * time.Second

type requeuer interface {
	Requeue(batch []ports.QueuedEvent)
}

type capacitor interface {
	Cap() int
}

// Spool is a ports.Channel that acknowledges an event once it is on disk.
type Spool struct {
	policy ports.Policy
	wal    ports.WAL
	queue  ports.EventQueue
	next   ports.Channel
	obs    ports.Observability

	attempts map[ports.WALEntryID]int

	// publishMu keeps the capacity check, WAL append and enqueue of one
	// event together so nothing reaches the WAL that the queue refuses.
	publishMu sync.Mutex

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New replays uncommitted WAL entries into the queue and starts delivering
// to next.
func New(wal ports.WAL, q ports.EventQueue, next ports.Channel, pol ports.Policy, obs ports.Observability) (*Spool, error) {
	if wal == nil || q == nil || next == nil || obs == nil {
		return nil, fmt.Errorf("spool: wal, queue, channel and observability are required")
	}
	pol.ApplyDefaults()

	if err := replayWALIntoQueue(wal, q, pol, obs); err != nil {
		return nil, err
	}

	s := &Spool{
		policy:   pol,
		wal:      wal,
		queue:    q,
		next:     next,
		obs:      obs,
		attempts: make(map[ports.WALEntryID]int),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go s.runDelivery()
	return s, nil
}

// Publish appends the event to the WAL and enqueues it according to policy.
func (s *Spool) Publish(ctx context.Context, event string, payload []byte, vis ports.Visibility) error {
	ev := &ports.SpooledEvent{
		Name:       event,
		Payload:    append([]byte(nil), payload...),
		Visibility: vis,
		SpooledAt:  time.Now().Unix(),
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if !waitForQueueCapacity(ctx, s.queue, queueLimit(s.queue, s.policy), s.policy, s.obs) {
		return ErrQueueFull
	}
	if !waitForWALCapacity(ctx, s.wal, s.policy, s.obs) {
		return ErrSpoolFull
	}

	id, err := s.wal.Append(ev)
	if err != nil {
		return fmt.Errorf("spool append: %w", err)
	}

	if !s.queue.Enqueue(id, ev) {
		// Only a foreign writer on the queue gets here. The entry stays in
		// the WAL and is picked up by the next replay.
		s.obs.LogCritical("spool_enqueue_after_append_failed", ErrQueueFull,
			ports.Field{Key: "id", Value: uint64(id)})
	}
	return nil
}

func (s *Spool) Name() string { return "spool(" + s.next.Name() + ")" }

// Len reports events waiting for delivery.
func (s *Spool) Len() int { return s.queue.Len() }

func (s *Spool) WALStats() ports.WALStats { return s.wal.Stats() }

// Close stops delivery, then closes the WAL and the downstream channel.
// Undelivered events stay in the WAL for the next start.
func (s *Spool) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout+time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

func (s *Spool) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	select {
	case <-s.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return errors.Join(s.wal.Close(), s.next.Close())
}

func replayWALIntoQueue(wal ports.WAL, q ports.EventQueue, pol ports.Policy, obs ports.Observability) error {
	stats := wal.Stats()
	if stats.LatestAppended == 0 {
		return nil
	}
	start := stats.OldestUncommitted
	if start == 0 || start > stats.LatestAppended {
		return nil
	}

	// Keep the newest entries that fit. Older overflow is dropped and
	// committed so it is not replayed again.
	room := queueLimit(q, pol) - q.Len()
	if room < 0 {
		room = 0
	}

	var (
		kept        []ports.QueuedEvent
		lastDropped ports.WALEntryID
		dropped     int
	)
	err := wal.Iterate(start, func(id ports.WALEntryID, ev *ports.SpooledEvent) error {
		kept = append(kept, ports.QueuedEvent{ID: id, Event: ev})
		if len(kept) > room {
			oldest := kept[0]
			kept = kept[1:]
			obs.RecordDrop(oldest.ID, oldest.Event, ErrQueueFull)
			lastDropped = oldest.ID
			dropped++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if lastDropped > 0 {
		if err := wal.Commit(lastDropped); err != nil {
			return fmt.Errorf("commit dropped replay entries: %w", err)
		}
	}

	var replayed int
	for _, item := range kept {
		if !q.Enqueue(item.ID, item.Event) {
			obs.RecordDrop(item.ID, item.Event, ErrQueueFull)
			dropped++
			continue
		}
		replayed++
	}
	if replayed > 0 || dropped > 0 {
		obs.LogInfo("spool_replay_complete",
			ports.Field{Key: "events", Value: replayed},
			ports.Field{Key: "dropped", Value: dropped},
			ports.Field{Key: "from_id", Value: uint64(start)})
	}
	return nil
}

// queueLimit is the queue's own capacity when it reports one, otherwise the
// policy's MaxQueueLen.
func queueLimit(q ports.EventQueue, pol ports.Policy) int {
	if c, ok := q.(capacitor); ok {
		return c.Cap()
	}
	return pol.MaxQueueLen
}
