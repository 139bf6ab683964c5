package state

import (
	"github.com/secdash/secdash/pkg/store"
)

// ReducerConfig customizes the reducer built by NewReducer.
// All callbacks receive the state by value and must return a new value;
// they must not mutate the Data slice they were handed. The Append,
// ReplaceFunc and RemoveFunc helpers follow that contract.
type ReducerConfig[T any, ID comparable] struct {
	// Initial overrides the group's default as the state NewReducer
	// starts from. Reset always rebuilds from the group default.
	Initial *AsyncState[T]

	// OnAddSuccess merges the created item into state. Without it, an add
	// success only clears the busy flag: Data stays untouched.
	OnAddSuccess func(AsyncState[T], T) AsyncState[T]

	// OnUpdateSuccess merges the stored item into state.
	OnUpdateSuccess func(AsyncState[T], T) AsyncState[T]

	// OnDeleteSuccess removes the deleted ids from state.
	OnDeleteSuccess func(AsyncState[T], []ID) AsyncState[T]

	// Extra handles caller-supplied transitions beyond the generated
	// operations. It runs for actions the generated reducer did not
	// recognize; return (state, true) when handled.
	Extra func(AsyncState[T], store.Action) (AsyncState[T], bool)
}

// NewReducer builds the pure state-transition function for the group's
// sub-slice. Transitions exist only for the group's enabled operations:
//
//   - intent: busy flag on, error cleared, data untouched
//   - success: busy flag off, error cleared; load success replaces Data,
//     the mutating operations only run their merge callback
//   - failure: busy flag off, error set to the carried message
//   - reset: fresh default state, regardless of anything in flight
//
// Every transition returns a new value; prior snapshots are never mutated.
func NewReducer[T any, ID comparable, Q any](g *Group[T, ID, Q], cfg ReducerConfig[T, ID]) store.Reducer[AsyncState[T]] {
	ops := g.ops
	feature := g.feature

	return func(s AsyncState[T], a store.Action) AsyncState[T] {
		switch act := a.(type) {
		case LoadAction[Q]:
			if act.feature != feature || !ops.Load {
				return extra(cfg, s, a)
			}
			s.Loading = true
			s.Err = ""
			return s

		case LoadSuccessAction[T]:
			if act.feature != feature || !ops.Load {
				return extra(cfg, s, a)
			}
			s.Loading = false
			s.Err = ""
			s.Data = act.Items
			s.Loaded = true
			return s

		case LoadFailureAction:
			if act.feature != feature || !ops.Load {
				return extra(cfg, s, a)
			}
			s.Loading = false
			s.Err = act.Message
			return s

		case AddAction[T]:
			if act.feature != feature || !ops.Add {
				return extra(cfg, s, a)
			}
			s.Adding = true
			s.Err = ""
			return s

		case AddSuccessAction[T]:
			if act.feature != feature || !ops.Add {
				return extra(cfg, s, a)
			}
			s.Adding = false
			s.Err = ""
			if cfg.OnAddSuccess != nil {
				s = cfg.OnAddSuccess(s, act.Item)
			}
			return s

		case AddFailureAction:
			if act.feature != feature || !ops.Add {
				return extra(cfg, s, a)
			}
			s.Adding = false
			s.Err = act.Message
			return s

		case UpdateAction[T, ID]:
			if act.feature != feature || !ops.Update {
				return extra(cfg, s, a)
			}
			s.Updating = true
			s.Err = ""
			return s

		case UpdateSuccessAction[T]:
			if act.feature != feature || !ops.Update {
				return extra(cfg, s, a)
			}
			s.Updating = false
			s.Err = ""
			if cfg.OnUpdateSuccess != nil {
				s = cfg.OnUpdateSuccess(s, act.Item)
			}
			return s

		case UpdateFailureAction:
			if act.feature != feature || !ops.Update {
				return extra(cfg, s, a)
			}
			s.Updating = false
			s.Err = act.Message
			return s

		case DeleteAction[ID]:
			if act.feature != feature || !ops.Delete {
				return extra(cfg, s, a)
			}
			s.Deleting = true
			s.Err = ""
			return s

		case DeleteSuccessAction[ID]:
			if act.feature != feature || !ops.Delete {
				return extra(cfg, s, a)
			}
			s.Deleting = false
			s.Err = ""
			if cfg.OnDeleteSuccess != nil {
				s = cfg.OnDeleteSuccess(s, act.IDs)
			}
			return s

		case DeleteFailureAction:
			if act.feature != feature || !ops.Delete {
				return extra(cfg, s, a)
			}
			s.Deleting = false
			s.Err = act.Message
			return s

		case ResetAction:
			if act.feature != feature {
				return extra(cfg, s, a)
			}
			return g.DefaultState()

		default:
			return extra(cfg, s, a)
		}
	}
}

func extra[T any, ID comparable](cfg ReducerConfig[T, ID], s AsyncState[T], a store.Action) AsyncState[T] {
	if cfg.Extra != nil {
		if next, handled := cfg.Extra(s, a); handled {
			return next
		}
	}
	return s
}

// InitialState returns the state a reducer built from cfg starts from.
// Useful when composing the sub-slice into a larger state tree.
func InitialState[T any, ID comparable, Q any](g *Group[T, ID, Q], cfg ReducerConfig[T, ID]) AsyncState[T] {
	if cfg.Initial != nil {
		return *cfg.Initial
	}
	return g.DefaultState()
}

// Mount lifts a sub-slice reducer into a composite state tree. get selects
// the sub-slice, set writes a new sub-slice into a copy of the composite
// state. Both must be pure; with struct states, set mutates its value
// receiver copy and returns it.
func Mount[S any, Sub any](get func(S) Sub, set func(S, Sub) S, r store.Reducer[Sub]) store.Reducer[S] {
	return func(s S, a store.Action) S {
		return set(s, r(get(s), a))
	}
}

// Combine chains reducers over the same state; each sees the state produced
// by its predecessor. Independent resources mounted on distinct sub-slices
// never observe each other's transitions.
func Combine[S any](reducers ...store.Reducer[S]) store.Reducer[S] {
	return func(s S, a store.Action) S {
		for _, r := range reducers {
			s = r(s, a)
		}
		return s
	}
}
