package reactive

// Listener is anything that can be notified when a dependency changes.
// Memos implement it to invalidate their cache; consumers implement it to
// schedule their own refresh (the WebSocket hub, a test probe, ...).
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication during batch processing.
	ID() uint64
}

// sourceTracker is implemented by listeners that keep a source list so they
// can unsubscribe before re-tracking (memos). Signals call AddSource when
// they are read under such a listener.
type sourceTracker interface {
	Listener
	addSource(source *signalBase)
}
