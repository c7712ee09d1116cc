package wal

import (
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

func entry(idx int) *ports.ArchiveEntry {
	return &ports.ArchiveEntry{
		ScanID: uuid.Nil,
		Result: domain.ScanPointResult{
			Position:   domain.Position{X: float64(idx), Y: 0},
			PointIndex: idx,
		},
	}
}

func TestFileWALAppendIterateAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}

	id1, err := w.Append(entry(0))
	if err != nil || id1 == 0 {
		t.Fatalf("append entry 1: %v id=%d", err, id1)
	}
	id2, err := w.Append(entry(1))
	if err != nil || id2 == 0 {
		t.Fatalf("append entry 2: %v id=%d", err, id2)
	}

	var iterated []int
	if err := w.Iterate(1, func(id ports.WALEntryID, e *ports.ArchiveEntry) error {
		iterated = append(iterated, e.Result.PointIndex)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(iterated) != 2 || iterated[0] != 0 || iterated[1] != 1 {
		t.Fatalf("unexpected iteration: %v", iterated)
	}

	if err := w.Commit(id2); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := w.writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := w.file.Close(); err != nil {
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

	// Ensure truncation handles partial writes by manually corrupting the log.
	if err := w2.file.Close(); err != nil {
		t.Fatalf("close wal2: %v", err)
	}
	if err := appendGarbage(w2.path); err != nil {
		t.Fatalf("append garbage: %v", err)
	}

	w3, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer w3.file.Close()

	var replayed int
	if err := w3.Iterate(1, func(ports.WALEntryID, *ports.ArchiveEntry) error {
		replayed++
		return nil
	}); err != nil {
		t.Fatalf("iterate after truncation: %v", err)
	}
	if replayed != 2 {
		t.Fatalf("expected 2 intact entries after truncation, got %d", replayed)
	}
}

func TestFileWALRecoversFromTornRecordBody(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := w.Append(entry(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := w.file.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}

	// Simulate a crash mid-way through the second record's body.
	stat, err := os.Stat(w.path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(w.path, stat.Size()-5); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen after torn body: %v", err)
	}
	defer w2.file.Close()

	var ids []ports.WALEntryID
	if err := w2.Iterate(1, func(id ports.WALEntryID, _ *ports.ArchiveEntry) error {
		ids = append(ids, id)
		return nil
	}); err != nil {
		t.Fatalf("iterate after recovery: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected only the intact first entry, got %v", ids)
	}
	if stats := w2.Stats(); stats.LatestAppended != 1 {
		t.Fatalf("latest appended = %d, want 1", stats.LatestAppended)
	}

	// The log must keep accepting appends after recovery.
	id, err := w2.Append(entry(2))
	if err != nil {
		t.Fatalf("append after recovery: %v", err)
	}
	if id != 2 {
		t.Fatalf("append after recovery assigned id %d, want 2", id)
	}
	var replayed int
	if err := w2.Iterate(1, func(ports.WALEntryID, *ports.ArchiveEntry) error {
		replayed++
		return nil
	}); err != nil {
		t.Fatalf("iterate after re-append: %v", err)
	}
	if replayed != 2 {
		t.Fatalf("expected 2 entries after re-append, got %d", replayed)
	}
}

func TestFileWALAppendDurableWithoutIterate(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	id, err := w.Append(entry(0))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	// Close without Iterate or an explicit flush, like a crashing process.
	if err := w.file.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}

	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w2.file.Close()

	if stats := w2.Stats(); stats.LatestAppended != id {
		t.Fatalf("latest appended = %d, want %d", stats.LatestAppended, id)
	}
	var seen int
	if err := w2.Iterate(1, func(_ ports.WALEntryID, e *ports.ArchiveEntry) error {
		seen++
		if e.Result.PointIndex != 0 {
			t.Fatalf("unexpected entry: %+v", e)
		}
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected the appended entry to survive reopen, got %d entries", seen)
	}
}

func TestFileWALIterateSkipsBelowFrom(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.file.Close()

	for i := 0; i < 3; i++ {
		if _, err := w.Append(entry(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	var seen []ports.WALEntryID
	if err := w.Iterate(3, func(id ports.WALEntryID, _ *ports.ArchiveEntry) error {
		seen = append(seen, id)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(seen) != 1 || seen[0] != 3 {
		t.Fatalf("expected only entry 3, got %v", seen)
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write([]byte{0xFF, 0xAA}); err != nil {
		return err
	}
	return nil
}
