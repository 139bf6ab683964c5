package store

import (
	"sync"
	"time"

	"github.com/secdash/secdash/pkg/reactive"
)

// Action is a named, immutable message describing an intent or an outcome.
// Concrete actions are typed structs; ActionType returns the feature-scoped
// tag used for metrics and debugging.
type Action interface {
	ActionType() string
}

// Reducer is a pure state transition: (current state, action) -> next state.
// Reducers must never mutate the state they receive; every transition
// returns a new value so downstream shallow-equality checks stay correct.
type Reducer[S any] func(S, Action) S

// Store owns one state tree and applies actions to it strictly in dispatch
// order. State lives in a reactive signal, so memos built over State()
// invalidate automatically on every transition.
type Store[S any] struct {
	// dispatchMu serializes reducer application. One action, one
	// synchronous transition, one new snapshot.
	dispatchMu sync.Mutex

	state   *reactive.Signal[S]
	reducer Reducer[S]

	// actionSubs observe every dispatched action after it has been
	// reduced. Effects register here.
	actionSubs   []func(Action)
	actionSubsMu sync.RWMutex

	metrics *Metrics
}

// Option configures a Store.
type Option[S any] func(*Store[S])

// WithMetrics attaches Prometheus instrumentation to the store.
func WithMetrics[S any](m *Metrics) Option[S] {
	return func(s *Store[S]) {
		s.metrics = m
	}
}

// New creates a store with the given initial state and root reducer.
func New[S any](initial S, reducer Reducer[S], opts ...Option[S]) *Store[S] {
	s := &Store[S]{
		state:   reactive.NewSignal(initial),
		reducer: reducer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch applies the action to the current state through the root reducer
// and notifies action subscribers. Dispatches are serialized; callers on any
// goroutine observe a strict total order of transitions.
//
// Action subscribers run synchronously under the dispatch lock and must not
// call Dispatch themselves; effect pipelines hand their async outcomes back
// via Dispatch from their own goroutines.
func (s *Store[S]) Dispatch(a Action) {
	if a == nil {
		return
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.applyLocked(a)
}

// DispatchIf applies the action only when guard still holds at the moment
// the dispatch slot is acquired. The guard runs under the dispatch lock,
// strictly after any transition that was in flight when the caller decided
// to dispatch, so the guard's decision and the reduction are one atomic
// step. Effect pipelines use this to discard superseded outcomes: a
// staleness check made outside the lock could pass and then apply after a
// newer outcome. Returns whether the action was applied.
func (s *Store[S]) DispatchIf(guard func() bool, a Action) bool {
	if a == nil {
		return false
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if guard != nil && !guard() {
		return false
	}
	s.applyLocked(a)
	return true
}

// applyLocked reduces a into the state and notifies action subscribers.
// Caller holds dispatchMu.
func (s *Store[S]) applyLocked(a Action) {
	start := time.Now()

	next := s.reducer(s.state.Peek(), a)
	s.state.Set(next)

	if s.metrics != nil {
		s.metrics.observe(a.ActionType(), time.Since(start))
	}

	s.actionSubsMu.RLock()
	subs := make([]func(Action), len(s.actionSubs))
	copy(subs, s.actionSubs)
	s.actionSubsMu.RUnlock()

	for _, fn := range subs {
		fn(a)
	}
}

// State returns the current state and subscribes the current reactive
// listener, if any. Selectors read through this.
func (s *Store[S]) State() S {
	return s.state.Get()
}

// Peek returns the current state without subscribing.
func (s *Store[S]) Peek() S {
	return s.state.Peek()
}

// SubscribeActions registers fn to observe every dispatched action after it
// has been reduced. Used by effect pipelines.
func (s *Store[S]) SubscribeActions(fn func(Action)) {
	s.actionSubsMu.Lock()
	s.actionSubs = append(s.actionSubs, fn)
	s.actionSubsMu.Unlock()
}

// stateWatcher adapts a snapshot callback to the reactive.Listener interface.
type stateWatcher[S any] struct {
	id    uint64
	store *Store[S]
	fn    func(S)
}

func (w *stateWatcher[S]) MarkDirty() { w.fn(w.store.Peek()) }
func (w *stateWatcher[S]) ID() uint64 { return w.id }

// Subscribe registers fn to receive a state snapshot after every change.
// Returns an unsubscribe function. The callback runs on the dispatching
// goroutine and should hand heavy work off (the WebSocket hub queues the
// snapshot and returns).
func (s *Store[S]) Subscribe(fn func(S)) func() {
	w := &stateWatcher[S]{id: reactive.NextWatcherID(), store: s, fn: fn}
	reactive.WithListener(w, func() {
		_ = s.state.Get()
	})
	return func() {
		reactive.Unsubscribe(s.state, w)
	}
}
