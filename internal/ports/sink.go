package ports

// ResultSink persists batches of archived scan points, typically to a
// time-series database. WriteBatch must be idempotent for replayed entries.
type ResultSink interface {
	WriteBatch(entries []*ArchiveEntry) error
	Name() string
}
