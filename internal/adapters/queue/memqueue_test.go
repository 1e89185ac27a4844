package queue

import (
	"testing"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	e1 := &ports.SpooledEvent{Name: "e1"}
	e2 := &ports.SpooledEvent{Name: "e2"}

	if !q.Enqueue(1, e1) || !q.Enqueue(2, e2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].ID != 1 || batch[0].Event.Name != "e1" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)
	if q.Cap() != 2 {
		t.Fatalf("expected capacity 2, got %d", q.Cap())
	}

	ev := &ports.SpooledEvent{Name: "cap"}

	if !q.Enqueue(1, ev) || !q.Enqueue(2, ev) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, ev) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4, ev) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemQueueRequeueKeepsOrder(t *testing.T) {
	q := NewMemQueue(4)
	for i := 1; i <= 3; i++ {
		q.Enqueue(ports.WALEntryID(i), &ports.SpooledEvent{})
	}

	batch := q.DequeueBatch(2)
	q.Requeue(batch)

	all := q.DequeueBatch(0)
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	for i, item := range all {
		if item.ID != ports.WALEntryID(i+1) {
			t.Fatalf("expected id %d at %d, got %d", i+1, i, item.ID)
		}
	}
}
