// Package state provides factories for managing remote-backed collections
// with a unidirectional data flow: an action group, a reducer, an effects
// pipeline, and memoized selectors per resource.
//
// A caller declares a feature name and which operations it needs, supplies
// the async services that actually talk to the backend, and gets back the
// full loop:
//
//	g := state.NewGroup[policy.WAFPolicy, string, policy.Query]("waf/policies").
//	    WithAdd().WithUpdate().WithDelete()
//
//	reducer := state.NewReducer(g, state.ReducerConfig[policy.WAFPolicy, string]{
//	    OnAddSuccess: func(s state.AsyncState[policy.WAFPolicy], p policy.WAFPolicy) state.AsyncState[policy.WAFPolicy] {
//	        return state.Append(s, p)
//	    },
//	})
//
//	effects := state.NewEffects(g, st, services, cfg)
//	effects.Register(st)
//
// Intent actions (Load, Add, Update, Delete) flip the matching busy flag and
// clear the error; effects invoke the injected service and translate the
// result into a success or failure action; selectors project the sub-state
// back out with stable references between dispatches.
//
// Concurrency per operation kind: load is switch-latest (a new load cancels
// the in-flight one and a superseded result is discarded), while add, update
// and delete drop duplicate intents while one is in flight, so a double-click
// never fires a duplicate request.
package state
