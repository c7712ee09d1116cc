package ports

// QueuedEntry pairs an archive entry with its WAL position.
type QueuedEntry struct {
	ID    WALEntryID
	Entry *ArchiveEntry
}

// ResultQueue is the bounded FIFO handoff between the event-driven archive
// recorder and its database flusher.
type ResultQueue interface {
	Enqueue(id WALEntryID, e *ArchiveEntry) bool
	DequeueBatch(max int) []QueuedEntry
	Len() int
}
