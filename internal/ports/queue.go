package ports

type QueuedEvent struct {
	ID    WALEntryID
	Event *SpooledEvent
}

type EventQueue interface {
	Enqueue(id WALEntryID, ev *SpooledEvent) bool
	DequeueBatch(max int) []QueuedEvent
	Len() int
}
