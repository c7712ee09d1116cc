package queue

import (
	"sync"

	"github.com/Luciosmic/fieldbench/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering.
type MemQueue struct {
	mu   sync.Mutex
	data []ports.QueuedEntry
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{
		data: make([]ports.QueuedEntry, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(id ports.WALEntryID, e *ports.ArchiveEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, ports.QueuedEntry{ID: id, Entry: e})
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]ports.QueuedEntry, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.ResultQueue = (*MemQueue)(nil)
