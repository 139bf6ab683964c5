package reactive

import (
	"runtime"
	"sync"
)

// trackingContext holds the reactive bookkeeping for one goroutine.
// Per-goroutine contexts let signals be read concurrently (store snapshots
// from effect goroutines) without the trackers interfering with each other.
type trackingContext struct {
	// currentListener is what's currently tracking dependencies.
	// nil means reads don't create subscriptions.
	currentListener Listener

	// batchDepth tracks nested Batch() calls. When > 0, signal updates
	// queue notifications instead of firing immediately.
	batchDepth int

	// pendingUpdates accumulates listeners to notify when the outermost
	// batch completes. Deduplicated by ID before notification.
	pendingUpdates []Listener
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// goroutineID extracts the current goroutine's ID from the runtime stack
// header ("goroutine <id> ..."). Implementation detail, never exposed.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ { // skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating one if needed.
func getTrackingContext() *trackingContext {
	gid := goroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}

	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// getCurrentListener returns the listener currently tracking dependencies,
// or nil when no tracking is active.
func getCurrentListener() Listener {
	return getTrackingContext().currentListener
}

// setCurrentListener installs l as the tracking listener and returns the
// previous one so it can be restored.
func setCurrentListener(l Listener) Listener {
	ctx := getTrackingContext()
	old := ctx.currentListener
	ctx.currentListener = l
	return old
}

func getBatchDepth() int {
	return getTrackingContext().batchDepth
}

func incrementBatchDepth() {
	getTrackingContext().batchDepth++
}

// decrementBatchDepth decreases the batch depth and reports whether the
// outermost batch just completed.
func decrementBatchDepth() bool {
	ctx := getTrackingContext()
	ctx.batchDepth--
	return ctx.batchDepth == 0
}

func queuePendingUpdate(l Listener) {
	ctx := getTrackingContext()
	ctx.pendingUpdates = append(ctx.pendingUpdates, l)
}

func drainPendingUpdates() []Listener {
	ctx := getTrackingContext()
	updates := ctx.pendingUpdates
	ctx.pendingUpdates = nil
	return updates
}

// WithListener runs fn with l installed as the tracking listener.
// Signal reads inside fn subscribe l to those signals.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}

// Untracked runs fn without tracking signal reads as dependencies.
// For a single read, Signal.Peek is clearer.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}
