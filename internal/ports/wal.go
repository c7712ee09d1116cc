package ports

import (
	"github.com/google/uuid"

	"github.com/Luciosmic/fieldbench/internal/domain"
)

// ArchiveEntry is one scan point bound to its scan identity, as persisted by
// the archive WAL and sink.
type ArchiveEntry struct {
	ScanID uuid.UUID              `json:"scan_id"`
	Result domain.ScanPointResult `json:"result"`
}

type WALEntryID uint64

// ResultWAL is the crash-safe log in front of the archive sink: points are
// appended before they are queued for the database, committed after the sink
// write succeeds, and replayed into the queue on startup.
type ResultWAL interface {
	Append(e *ArchiveEntry) (WALEntryID, error)
	Iterate(from WALEntryID, fn func(id WALEntryID, e *ArchiveEntry) error) error
	Commit(upto WALEntryID) error
	Stats() WALStats
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
}
