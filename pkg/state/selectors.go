package state

import (
	"github.com/secdash/secdash/pkg/reactive"
	"github.com/secdash/secdash/pkg/store"
)

// Selectors are read-only projections from a state tree down to one
// resource's fields. They are memoized over the store's state signal:
// between dispatches, repeated reads return the cached value, so Data()
// yields the identical slice until a transition actually replaces it.
type Selectors[T any] struct {
	state *reactive.Memo[AsyncState[T]]
	data  *reactive.Memo[[]T]
}

// NewSelectors builds selectors for the sub-slice that get projects out of
// the store's state tree.
func NewSelectors[S any, T any](st *store.Store[S], get func(S) AsyncState[T]) *Selectors[T] {
	root := reactive.NewMemo(func() AsyncState[T] {
		return get(st.State())
	})
	return &Selectors[T]{
		state: root,
		data: reactive.NewMemo(func() []T {
			return root.Get().Data
		}),
	}
}

// State returns the whole resource sub-state.
func (s *Selectors[T]) State() AsyncState[T] { return s.state.Get() }

// Data returns the loaded items.
func (s *Selectors[T]) Data() []T { return s.data.Get() }

// Loaded reports whether the collection has been fetched at least once.
func (s *Selectors[T]) Loaded() bool { return s.state.Get().Loaded }

// Loading reports whether a load is in flight.
func (s *Selectors[T]) Loading() bool { return s.state.Get().Loading }

// Adding reports whether an add is in flight.
func (s *Selectors[T]) Adding() bool { return s.state.Get().Adding }

// Updating reports whether an update is in flight.
func (s *Selectors[T]) Updating() bool { return s.state.Get().Updating }

// Deleting reports whether a delete is in flight.
func (s *Selectors[T]) Deleting() bool { return s.state.Get().Deleting }

// Busy reports whether any operation is in flight.
func (s *Selectors[T]) Busy() bool { return s.state.Get().Busy() }

// Err returns the last failure message, empty when none.
func (s *Selectors[T]) Err() string { return s.state.Get().Err }
