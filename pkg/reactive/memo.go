package reactive

import (
	"sync"
	"sync/atomic"
)

// Memo is a cached computation that automatically tracks its dependencies.
// When any dependency changes, the memo is invalidated and recomputes on the
// next read.
//
// Memos are lazy: they only compute when Get or Peek is called. If several
// dependencies change before a read, the memo recomputes once. Between
// changes, Get returns the cached value, so for reference types repeated
// reads of an unchanged memo yield the same reference. Selectors rely on
// that guarantee for cheap downstream equality checks.
//
// Memos can themselves be subscribed to, enabling chains of derived values.
type Memo[T any] struct {
	base signalBase

	// compute is the function that computes the memo's value.
	compute func() T

	// value is the cached computed value.
	value T

	// valueMu protects value access.
	valueMu sync.RWMutex

	// valid indicates whether the cached value is current.
	valid atomic.Bool

	// sources are the signals/memos this memo depends on.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// computing prevents infinite recursion on circular dependencies.
	computing atomic.Bool
}

// NewMemo creates a new memo with the given computation function.
// The computation runs lazily on first Get.
func NewMemo[T any](compute func() T) *Memo[T] {
	return &Memo[T]{
		base: signalBase{
			id: nextID(),
		},
		compute: compute,
	}
}

// Get returns the memo's value, recomputing if necessary, and subscribes the
// current listener to this memo.
func (m *Memo[T]) Get() T {
	if listener := getCurrentListener(); listener != nil {
		m.base.subscribe(listener)
		if tr, ok := listener.(sourceTracker); ok {
			tr.addSource(&m.base)
		}
	}

	if !m.valid.Load() {
		m.recompute()
	}

	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// Peek returns the memo's value without subscribing.
// Still recomputes if the cached value is stale.
func (m *Memo[T]) Peek() T {
	if !m.valid.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// MarkDirty invalidates the memo and propagates to subscribers.
// Implements the Listener interface.
func (m *Memo[T]) MarkDirty() {
	// CAS keeps repeated invalidations idempotent.
	if m.valid.CompareAndSwap(true, false) {
		m.base.notifySubscribers()
	}
}

// ID returns the unique identifier for this memo.
// Implements the Listener interface.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// addSource records a dependency. Implements sourceTracker.
func (m *Memo[T]) addSource(source *signalBase) {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()

	for _, s := range m.sources {
		if s == source {
			return
		}
	}
	m.sources = append(m.sources, source)
}

// recompute runs the computation and updates the cached value.
func (m *Memo[T]) recompute() {
	if m.computing.Swap(true) {
		// Already computing: circular dependency, keep the stale value.
		return
	}
	defer m.computing.Store(false)

	// Unsubscribe from old sources; the compute run re-tracks fresh ones.
	m.sourcesMu.Lock()
	for _, source := range m.sources {
		source.unsubscribe(m)
	}
	m.sources = m.sources[:0]
	m.sourcesMu.Unlock()

	old := setCurrentListener(m)
	newValue := m.compute()
	setCurrentListener(old)

	m.valueMu.Lock()
	m.value = newValue
	m.valueMu.Unlock()

	m.valid.Store(true)
}

// Ensure Memo implements sourceTracker.
var _ sourceTracker = (*Memo[int])(nil)
