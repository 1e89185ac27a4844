package ports

type WALEntryID uint64

// SpooledEvent is a publish call held on disk until the downstream channel
// accepts it.
type SpooledEvent struct {
	Name       string     `cbor:"1,keyasint"`
	Payload    []byte     `cbor:"2,keyasint"`
	Visibility Visibility `cbor:"3,keyasint"`
	SpooledAt  int64      `cbor:"4,keyasint"`
}

type WAL interface {
	Append(ev *SpooledEvent) (WALEntryID, error)
	Iterate(from WALEntryID, fn func(id WALEntryID, ev *SpooledEvent) error) error
	Commit(upto WALEntryID) error
	TruncateCommitted() error
	Stats() WALStats
	Close() error
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
}
