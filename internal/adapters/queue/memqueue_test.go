package queue

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

func entry(idx int) *ports.ArchiveEntry {
	return &ports.ArchiveEntry{
		ScanID: uuid.Nil,
		Result: domain.ScanPointResult{PointIndex: idx},
	}
}

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	if !q.Enqueue(1, entry(0)) || !q.Enqueue(2, entry(1)) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].ID != 1 || batch[0].Entry.Result.PointIndex != 0 {
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

	if !q.Enqueue(1, entry(0)) || !q.Enqueue(2, entry(1)) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, entry(2)) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4, entry(3)) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}
