package spool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/PulseFlow/internal/adapters/queue"
	"github.com/ghalamif/PulseFlow/internal/adapters/wal"
	"github.com/ghalamif/PulseFlow/internal/ports"
)

func TestSpoolDeliversInOrderAfterOutage(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	down := &flakyChannel{failFirst: 2}
	obs := &mockObs{}

	s, err := New(w, queue.NewMemQueue(16), down, testPolicy(), obs)
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}

	for _, p := range []string{"a", "b", "c"} {
		if err := s.Publish(context.Background(), "hb", []byte(p), ports.Private); err != nil {
			t.Fatalf("publish %s: %v", p, err)
		}
	}

	waitFor(t, func() bool { return len(down.delivered()) == 3 })
	if got := down.delivered(); got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected in-order delivery, got %v", got)
	}
	waitFor(t, func() bool { return w.Stats().OldestUncommitted == 4 })

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !down.isClosed() {
		t.Fatalf("expected downstream channel to be closed")
	}
}

func TestSpoolReplaysUndeliveredEvents(t *testing.T) {
	dir := t.TempDir()

	w, err := wal.NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	offline := &flakyChannel{failFirst: 1 << 30}
	s, err := New(w, queue.NewMemQueue(16), offline, testPolicy(), &mockObs{})
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	if err := s.Publish(context.Background(), "hb", []byte("kept"), ports.Public); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w2, err := wal.NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	online := &flakyChannel{}
	s2, err := New(w2, queue.NewMemQueue(16), online, testPolicy(), &mockObs{})
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	defer s2.Close()

	waitFor(t, func() bool { return len(online.delivered()) == 1 })
	if got := online.delivered()[0]; got != "kept" {
		t.Fatalf("expected replayed payload, got %q", got)
	}
	if vis := online.lastVisibility(); vis != ports.Public {
		t.Fatalf("expected visibility to survive replay, got %s", vis)
	}
}

func TestSpoolDropsAfterMaxAttempts(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	pol := testPolicy()
	pol.MaxAttempts = 2
	obs := &mockObs{}
	down := &flakyChannel{failFirst: 2}

	s, err := New(w, queue.NewMemQueue(4), down, pol, obs)
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	defer s.Close()

	if err := s.Publish(context.Background(), "hb", []byte("poison"), ports.Private); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := s.Publish(context.Background(), "hb", []byte("fine"), ports.Private); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return len(down.delivered()) == 1 })
	if got := down.delivered()[0]; got != "fine" {
		t.Fatalf("expected poison event to be dropped, delivered %q", got)
	}
	if obs.dropCount() != 1 {
		t.Fatalf("expected one drop, got %d", obs.dropCount())
	}
}

func TestSpoolPublishQueueFull(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	pol := testPolicy()
	pol.MaxQueueLen = 1
	pol.OnQueueFull = "reject"

	// a channel that never answers keeps the first event in flight
	block := make(chan struct{})
	s, err := New(w, queue.NewMemQueue(1), &blockingChannel{release: block}, pol, &mockObs{})
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	defer func() {
		close(block)
		_ = s.Close()
	}()

	for i := 0; i < 3; i++ {
		if err := s.Publish(context.Background(), "hb", []byte{byte(i)}, ports.Private); errors.Is(err, ErrQueueFull) {
			return
		}
	}
	t.Fatalf("expected ErrQueueFull once the queue is saturated")
}

func TestSpoolRestartsAfterQueueFullOutage(t *testing.T) {
	dir := t.TempDir()
	pol := testPolicy()
	pol.MaxQueueLen = 2
	pol.RetryDelay = time.Hour
	pol.OnQueueFull = "drop"

	w, err := wal.NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	s, err := New(w, queue.NewMemQueue(2), &flakyChannel{failFirst: 1 << 30}, pol, &mockObs{})
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}

	var accepted []string
	refused := 0
	for i := 0; i < 6; i++ {
		payload := string(rune('a' + i))
		err := s.Publish(context.Background(), "hb", []byte(payload), ports.Private)
		switch {
		case err == nil:
			accepted = append(accepted, payload)
		case errors.Is(err, ErrQueueFull):
			refused++
		default:
			t.Fatalf("publish %s: %v", payload, err)
		}
	}
	if refused == 0 {
		t.Fatalf("expected the outage to fill the queue")
	}
	if got := w.Stats().LatestAppended; int(got) != len(accepted) {
		t.Fatalf("refused events reached the wal: %d entries for %d accepted", got, len(accepted))
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w2, err := wal.NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	online := &flakyChannel{}
	obs := &mockObs{}
	s2, err := New(w2, queue.NewMemQueue(2), online, pol, obs)
	if err != nil {
		t.Fatalf("spool must start after an outage: %v", err)
	}
	defer s2.Close()

	want := accepted
	if len(want) > 2 {
		want = want[len(want)-2:]
	}
	waitFor(t, func() bool { return len(online.delivered()) == len(want) })
	got := online.delivered()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected newest accepted events %v, got %v", want, got)
		}
	}
	if obs.dropCount() != len(accepted)-len(want) {
		t.Fatalf("expected %d replay drops, got %d", len(accepted)-len(want), obs.dropCount())
	}
}

func TestReplayDropsOldestOverflow(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	for _, p := range []string{"1", "2", "3", "4", "5"} {
		if _, err := w.Append(&ports.SpooledEvent{Name: "hb", Payload: []byte(p)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	q := queue.NewMemQueue(2)
	obs := &mockObs{}
	if err := replayWALIntoQueue(w, q, testPolicy(), obs); err != nil {
		t.Fatalf("replay: %v", err)
	}

	batch := q.DequeueBatch(0)
	if len(batch) != 2 || string(batch[0].Event.Payload) != "4" || string(batch[1].Event.Payload) != "5" {
		t.Fatalf("expected the two newest entries, got %+v", batch)
	}
	if obs.dropCount() != 3 {
		t.Fatalf("expected 3 drops, got %d", obs.dropCount())
	}
	if got := w.Stats().OldestUncommitted; got != 4 {
		t.Fatalf("expected dropped entries to be committed, oldest uncommitted = %d", got)
	}
	_ = w.Close()
}

func TestSpoolName(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	s, err := New(w, queue.NewMemQueue(1), &flakyChannel{}, testPolicy(), &mockObs{})
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	defer s.Close()
	if s.Name() != "spool(flaky)" {
		t.Fatalf("unexpected name %q", s.Name())
	}
}

func testPolicy() ports.Policy {
	return ports.Policy{
		MaxQueueLen: 16,
		IdleSleep:   time.Millisecond,
		RetryDelay:  time.Millisecond,
		MaxAttempts: -1,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

type flakyChannel struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	payloads  []string
	vis       ports.Visibility
	closed    bool
}

func (f *flakyChannel) Publish(_ context.Context, _ string, payload []byte, vis ports.Visibility) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return errors.New("offline")
	}
	f.payloads = append(f.payloads, string(payload))
	f.vis = vis
	return nil
}

func (f *flakyChannel) Name() string { return "flaky" }

func (f *flakyChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *flakyChannel) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.payloads...)
}

func (f *flakyChannel) lastVisibility() ports.Visibility {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vis
}

func (f *flakyChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type blockingChannel struct {
	release chan struct{}
}

func (b *blockingChannel) Publish(ctx context.Context, _ string, _ []byte, _ ports.Visibility) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingChannel) Name() string { return "blocking" }
func (b *blockingChannel) Close() error { return nil }

type mockObs struct {
	mu     sync.Mutex
	errors []error
	drops  int
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(string, float64)                {}
func (m *mockObs) ObserveLatency(string, float64)            {}
func (m *mockObs) SetGauge(string, float64)                  {}
func (m *mockObs) RecordDrop(ports.WALEntryID, *ports.SpooledEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops++
}

func (m *mockObs) dropCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
