package reactive

import (
	"reflect"
	"sync"
)

// signalBase provides type-erased subscriber management.
// It is embedded in Signal[T] and Memo[T] to share subscription logic.
type signalBase struct {
	id uint64

	// subs are the listeners subscribed to this signal.
	subs []Listener

	// subMu protects the subs slice.
	subMu sync.RWMutex
}

// subscribe adds a listener, deduplicating by listener ID.
func (s *signalBase) subscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for _, existing := range s.subs {
		if existing.ID() == lid {
			return
		}
	}

	s.subs = append(s.subs, l)
}

// unsubscribe removes a listener from this signal's subscribers.
func (s *signalBase) unsubscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for i, existing := range s.subs {
		if existing.ID() == lid {
			// Order doesn't matter, swap with last
			s.subs[i] = s.subs[len(s.subs)-1]
			s.subs = s.subs[:len(s.subs)-1]
			return
		}
	}
}

// notifySubscribers notifies all subscribers that this signal changed.
// Copies the subscriber list first so no lock is held during notification.
func (s *signalBase) notifySubscribers() {
	s.subMu.RLock()
	subs := make([]Listener, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	if getBatchDepth() > 0 {
		for _, sub := range subs {
			queuePendingUpdate(sub)
		}
	} else {
		for _, sub := range subs {
			sub.MarkDirty()
		}
	}
}

// Signal is a reactive value container.
// Reading a Signal during a tracked context (memo computation or an
// explicit WithListener scope) subscribes the current listener to change
// notifications.
type Signal[T any] struct {
	base signalBase

	// value is the current signal value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal determines whether a Set actually changed the value.
	// If nil, defaultEquals is used.
	equal func(T, T) bool
}

// NewSignal creates a new signal with the given initial value.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{
		base: signalBase{
			id: nextID(),
		},
		value: initial,
	}
}

// Get returns the current value and subscribes the current listener, if any.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track dependency after releasing the value lock to prevent deadlock.
	if listener := getCurrentListener(); listener != nil {
		s.base.subscribe(listener)
		if tr, ok := listener.(sourceTracker); ok {
			tr.addSource(&s.base)
		}
	}

	return value
}

// Peek returns the current value without subscribing.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the signal's value and notifies subscribers if it changed.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.base.notifySubscribers()
	}
}

// Update atomically reads and updates the signal's value.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	oldValue := s.value
	newValue := fn(oldValue)
	changed := !s.equals(oldValue, newValue)
	if changed {
		s.value = newValue
	}
	s.mu.Unlock()

	if changed {
		s.base.notifySubscribers()
	}
}

// WithEquals configures a custom equality function and returns the signal.
// Useful when reflect.DeepEqual is too expensive or has wrong semantics for T.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// Unsubscribe removes a listener from the signal's subscribers.
// External Listener implementations (store watchers) use this to detach.
func Unsubscribe[T any](s *Signal[T], l Listener) {
	s.base.unsubscribe(l)
}

// NextWatcherID returns a fresh unique ID for an externally implemented
// Listener. IDs from this source never collide with signal or memo IDs.
func NextWatcherID() uint64 {
	return nextID()
}

// defaultEquals uses == for the common comparable kinds and falls back to
// reflect.DeepEqual for slices, maps and structs.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int64:
		return av == any(b).(int64)
	case uint64:
		return av == any(b).(uint64)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}
