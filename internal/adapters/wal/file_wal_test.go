package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

func TestFileWALAppendIterateAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}

	e1 := &ports.SpooledEvent{Name: "hb", Payload: []byte(`{"hr":70}`), Visibility: ports.Private}
	e2 := &ports.SpooledEvent{Name: "hb", Payload: []byte(`{"hr":71}`), Visibility: ports.Public}

	id1, err := w.Append(e1)
	if err != nil || id1 == 0 {
		t.Fatalf("append event 1: %v id=%d", err, id1)
	}
	id2, err := w.Append(e2)
	if err != nil || id2 == 0 {
		t.Fatalf("append event 2: %v id=%d", err, id2)
	}

	var iterated []string
	if err := w.Iterate(1, func(id ports.WALEntryID, ev *ports.SpooledEvent) error {
		iterated = append(iterated, string(ev.Payload))
		if id == id2 && ev.Visibility != ports.Public {
			t.Fatalf("expected visibility to survive encoding")
		}
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(iterated) != 2 || iterated[1] != `{"hr":71}` {
		t.Fatalf("unexpected iteration result: %v", iterated)
	}

	if err := w.Commit(id2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}

	// Reopen and ensure committed metadata was persisted.
	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}

	stats := w2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}
	if stats.OldestUncommitted != id2+1 {
		t.Fatalf("expected oldest uncommitted %d, got %d", id2+1, stats.OldestUncommitted)
	}

	if err := w2.Close(); err != nil {
		t.Fatalf("close wal2: %v", err)
	}

	// A torn tail is cut off on the next open.
	path := filepath.Join(dir, "spool.log")
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := appendGarbage(path); err != nil {
		t.Fatalf("append garbage: %v", err)
	}

	w3, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer w3.Close()
	if got := w3.Stats().SizeBytes; got != before.Size() {
		t.Fatalf("expected torn tail trimmed to %d bytes, got %d", before.Size(), got)
	}
}

func TestFileWALTruncateCommitted(t *testing.T) {
	w, err := NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()

	var last ports.WALEntryID
	for i := 0; i < 3; i++ {
		last, err = w.Append(&ports.SpooledEvent{Name: "hb", Payload: []byte{byte('a' + i)}})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	sizeBefore := w.Stats().SizeBytes

	if err := w.Commit(last - 1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.TruncateCommitted(); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if w.Stats().SizeBytes >= sizeBefore {
		t.Fatalf("expected wal to shrink, before=%d after=%d", sizeBefore, w.Stats().SizeBytes)
	}

	var ids []ports.WALEntryID
	if err := w.Iterate(0, func(id ports.WALEntryID, _ *ports.SpooledEvent) error {
		ids = append(ids, id)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(ids) != 1 || ids[0] != last {
		t.Fatalf("expected only entry %d to remain, got %v", last, ids)
	}

	next, err := w.Append(&ports.SpooledEvent{Name: "hb"})
	if err != nil {
		t.Fatalf("append after truncate: %v", err)
	}
	if next != last+1 {
		t.Fatalf("expected ids to continue at %d, got %d", last+1, next)
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA})
	return err
}
