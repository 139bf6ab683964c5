package state

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/secdash/secdash/pkg/store"
)

// recorder forwards outcomes to the store and exposes them to the test.
type recorder struct {
	st *store.Store[AsyncState[rule]]
	ch chan store.Action
}

func (r *recorder) Dispatch(a store.Action) {
	r.st.Dispatch(a)
	r.ch <- a
}

func (r *recorder) DispatchIf(guard func() bool, a store.Action) bool {
	if !r.st.DispatchIf(guard, a) {
		return false
	}
	r.ch <- a
	return true
}

type harness struct {
	g   *Group[rule, int, query]
	st  *store.Store[AsyncState[rule]]
	out chan store.Action
}

func newHarness(t *testing.T, svc Services[rule, int, query], cfg EffectsConfig[rule, int]) *harness {
	t.Helper()

	// Enable only the operations whose services are injected; NewEffects
	// panics on an enabled operation without a service.
	g := NewGroup[rule, int, query]("test/rules")
	if svc.Add != nil {
		g = g.WithAdd()
	}
	if svc.Update != nil {
		g = g.WithUpdate()
	}
	if svc.Delete != nil {
		g = g.WithDelete()
	}
	st := store.New(AsyncState[rule]{}, newTestReducer(g))
	rec := &recorder{st: st, ch: make(chan store.Action, 16)}

	if cfg.Current == nil {
		cfg.Current = st.Peek
	}

	NewEffects(g, rec, svc, cfg).Register(st)
	return &harness{g: g, st: st, out: rec.ch}
}

func (h *harness) waitOutcome(t *testing.T) store.Action {
	t.Helper()
	select {
	case a := <-h.out:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome action")
		return nil
	}
}

func (h *harness) expectNoOutcome(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case a := <-h.out:
		t.Fatalf("unexpected outcome %q", a.ActionType())
	case <-time.After(window):
	}
}

func TestLoadRoundTrip(t *testing.T) {
	items := []rule{{ID: 1, Name: "sqli"}, {ID: 2, Name: "xss"}}
	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) {
			return items, nil
		},
	}, EffectsConfig[rule, int]{})

	h.st.Dispatch(h.g.Load())
	if !h.st.Peek().Loading {
		t.Error("load intent did not set the loading flag synchronously")
	}

	a := h.waitOutcome(t)
	if _, ok := a.(LoadSuccessAction[rule]); !ok {
		t.Fatalf("expected load success, got %q", a.ActionType())
	}

	s := h.st.Peek()
	if s.Loading || s.Err != "" || !s.Loaded {
		t.Errorf("unexpected state after load: %+v", s)
	}
	if len(s.Data) != 2 || s.Data[0].Name != "sqli" {
		t.Errorf("data does not match service result: %+v", s.Data)
	}
}

func TestLoadSkippedWhenDataPresent(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) {
			calls.Add(1)
			return []rule{{ID: 1}}, nil
		},
	}, EffectsConfig[rule, int]{})

	h.st.Dispatch(h.g.Load())
	h.waitOutcome(t)
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call after first load, got %d", calls.Load())
	}

	// Data is present now; a plain load must be skipped entirely.
	h.st.Dispatch(h.g.Load())
	h.expectNoOutcome(t, 100*time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("skipped load still called the service: %d calls", calls.Load())
	}
}

func TestForceReloadFetchesDespiteData(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) {
			calls.Add(1)
			return []rule{{ID: int(calls.Load())}}, nil
		},
	}, EffectsConfig[rule, int]{})

	h.st.Dispatch(h.g.Load())
	h.waitOutcome(t)

	h.st.Dispatch(h.g.Reload())
	h.waitOutcome(t)

	if calls.Load() != 2 {
		t.Errorf("expected 2 service calls, got %d", calls.Load())
	}
	if s := h.st.Peek(); len(s.Data) != 1 || s.Data[0].ID != 2 {
		t.Errorf("state does not reflect the reload: %+v", s.Data)
	}
}

func TestLoadParamsReachService(t *testing.T) {
	var got atomic.Value
	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) {
			got.Store(q.Severity)
			return nil, nil
		},
	}, EffectsConfig[rule, int]{})

	h.st.Dispatch(h.g.LoadWith(query{Severity: "critical"}, false))
	h.waitOutcome(t)

	if got.Load() != "critical" {
		t.Errorf("expected params to reach service, got %v", got.Load())
	}
}

func TestServiceErrorBecomesFailureAction(t *testing.T) {
	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) {
			return nil, errors.New("X")
		},
	}, EffectsConfig[rule, int]{})

	before := h.st.Peek().Data
	h.st.Dispatch(h.g.Load())

	a := h.waitOutcome(t)
	fail, ok := a.(LoadFailureAction)
	if !ok {
		t.Fatalf("expected load failure, got %q", a.ActionType())
	}
	if fail.Message != "X" {
		t.Errorf("expected message %q, got %q", "X", fail.Message)
	}

	s := h.st.Peek()
	if s.Loading || s.Err != "X" {
		t.Errorf("unexpected state after failure: %+v", s)
	}
	if len(s.Data) != len(before) {
		t.Errorf("data changed across a failed load: %+v", s.Data)
	}
}

func TestAddSuccessCarriesResolvedMessage(t *testing.T) {
	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) { return nil, nil },
		Add: func(ctx context.Context, r rule) (rule, error) {
			r.ID = 7
			return r, nil
		},
	}, EffectsConfig[rule, int]{
		Add: MessageSpec[rule]{Success: "rule created"},
	})

	h.st.Dispatch(h.g.Add(rule{Name: "lfi"}))

	a := h.waitOutcome(t)
	success, ok := a.(AddSuccessAction[rule])
	if !ok {
		t.Fatalf("expected add success, got %q", a.ActionType())
	}
	if success.Message != "rule created" {
		t.Errorf("expected static message, got %q", success.Message)
	}
	if success.Item.ID != 7 {
		t.Errorf("expected service result in payload, got %+v", success.Item)
	}

	if s := h.st.Peek(); s.Adding || len(s.Data) != 1 || s.Data[0].ID != 7 {
		t.Errorf("unexpected state after add: %+v", s)
	}
}

func TestRapidAddIntentsAreDropped(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32

	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) { return nil, nil },
		Add: func(ctx context.Context, r rule) (rule, error) {
			calls.Add(1)
			<-release
			return r, nil
		},
	}, EffectsConfig[rule, int]{})

	h.st.Dispatch(h.g.Add(rule{ID: 1}))
	h.st.Dispatch(h.g.Add(rule{ID: 2})) // dropped: one already in flight
	close(release)

	a := h.waitOutcome(t)
	if _, ok := a.(AddSuccessAction[rule]); !ok {
		t.Fatalf("expected add success, got %q", a.ActionType())
	}
	h.expectNoOutcome(t, 100*time.Millisecond)

	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 service invocation, got %d", calls.Load())
	}
	if s := h.st.Peek(); len(s.Data) != 1 || s.Data[0].ID != 1 {
		t.Errorf("expected only the first add applied: %+v", s.Data)
	}
}

func TestRapidLoadsLatestWins(t *testing.T) {
	firstStarted := make(chan struct{})
	firstDone := make(chan struct{})
	var calls atomic.Int32

	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) {
			if calls.Add(1) == 1 {
				// Simulate a slow first request that ignores cancellation
				// and resolves late.
				close(firstStarted)
				<-firstDone
				return []rule{{ID: 1, Name: "stale"}}, nil
			}
			return []rule{{ID: 2, Name: "fresh"}}, nil
		},
	}, EffectsConfig[rule, int]{})

	h.st.Dispatch(h.g.Load())
	// Only one load goroutine exists until the second dispatch, so waiting
	// here pins the slow branch to the first load regardless of scheduling.
	select {
	case <-firstStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first load never reached the service")
	}
	h.st.Dispatch(h.g.Load()) // supersedes the first

	a := h.waitOutcome(t)
	success, ok := a.(LoadSuccessAction[rule])
	if !ok {
		t.Fatalf("expected load success, got %q", a.ActionType())
	}
	if success.Items[0].Name != "fresh" {
		t.Fatalf("expected the second load's outcome first, got %+v", success.Items)
	}

	// Let the superseded first load resolve; its result must be discarded.
	close(firstDone)
	h.expectNoOutcome(t, 100*time.Millisecond)

	if s := h.st.Peek(); s.Data[0].Name != "fresh" {
		t.Errorf("stale load resurrected state: %+v", s.Data)
	}
}

// stallFirstDispatcher holds the first guarded outcome at the dispatcher
// boundary until gate closes, reproducing dispatch contention where a
// superseded load's outcome arrives at the store after the newer one.
type stallFirstDispatcher struct {
	rec     *recorder
	stalled chan struct{}
	gate    chan struct{}
	first   atomic.Bool
}

func (d *stallFirstDispatcher) Dispatch(a store.Action) { d.rec.Dispatch(a) }

func (d *stallFirstDispatcher) DispatchIf(guard func() bool, a store.Action) bool {
	if d.first.CompareAndSwap(false, true) {
		close(d.stalled)
		<-d.gate
	}
	return d.rec.DispatchIf(guard, a)
}

func TestSupersededLoadOutcomeNeverAppliesLate(t *testing.T) {
	// Load-only group: only the Load service is injected below.
	g := NewGroup[rule, int, query]("test/rules")
	st := store.New(AsyncState[rule]{}, newTestReducer(g))
	rec := &recorder{st: st, ch: make(chan store.Action, 16)}
	d := &stallFirstDispatcher{
		rec:     rec,
		stalled: make(chan struct{}),
		gate:    make(chan struct{}),
	}

	var calls atomic.Int32
	NewEffects(g, d, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) {
			if calls.Add(1) == 1 {
				return []rule{{ID: 1, Name: "stale"}}, nil
			}
			return []rule{{ID: 2, Name: "fresh"}}, nil
		},
	}, EffectsConfig[rule, int]{Current: st.Peek}).Register(st)

	h := &harness{g: g, st: st, out: rec.ch}

	// First load resolves and reaches the dispatcher, where it stalls
	// just short of the store.
	st.Dispatch(g.Load())
	select {
	case <-d.stalled:
	case <-time.After(2 * time.Second):
		t.Fatal("first load never reached the dispatcher")
	}

	// Supersede it while its outcome is in flight, and let the newer
	// load finish first.
	st.Dispatch(g.Reload())
	a := h.waitOutcome(t)
	success, ok := a.(LoadSuccessAction[rule])
	if !ok || success.Items[0].Name != "fresh" {
		t.Fatalf("expected the newer load's outcome, got %+v", a)
	}

	// Release the stale outcome. Its staleness must be re-decided at the
	// point of dispatch, so it can never overwrite the newer result.
	close(d.gate)
	h.expectNoOutcome(t, 100*time.Millisecond)

	if s := st.Peek(); s.Data[0].Name != "fresh" {
		t.Errorf("superseded load's outcome was applied after the newer one: data = %q, want %q",
			s.Data[0].Name, "fresh")
	}
}

func TestServicePanicBecomesFailure(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) { return nil, nil },
		Add: func(ctx context.Context, r rule) (rule, error) {
			if calls.Add(1) == 1 {
				panic("service exploded")
			}
			return r, nil
		},
	}, EffectsConfig[rule, int]{})

	h.st.Dispatch(h.g.Add(rule{ID: 1}))

	a := h.waitOutcome(t)
	fail, ok := a.(AddFailureAction)
	if !ok {
		t.Fatalf("expected add failure, got %q", a.ActionType())
	}
	if !strings.Contains(fail.Message, "panicked") {
		t.Errorf("expected panic message, got %q", fail.Message)
	}

	// The pipeline must survive the panic.
	h.st.Dispatch(h.g.Add(rule{ID: 2}))
	a = h.waitOutcome(t)
	if _, ok := a.(AddSuccessAction[rule]); !ok {
		t.Errorf("pipeline dead after panic, got %q", a.ActionType())
	}
}

func TestResetDiscardsLateMutationOutcome(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) { return nil, nil },
		Add: func(ctx context.Context, r rule) (rule, error) {
			<-release
			return r, nil
		},
	}, EffectsConfig[rule, int]{})

	h.st.Dispatch(h.g.Add(rule{ID: 1}))
	h.st.Dispatch(h.g.Reset())
	close(release)

	h.expectNoOutcome(t, 100*time.Millisecond)

	if s := h.st.Peek(); s.Busy() || s.Loaded || len(s.Data) != 0 {
		t.Errorf("late outcome resurrected state after reset: %+v", s)
	}
}

func TestResetCancelsInFlightLoad(t *testing.T) {
	h := newHarness(t, Services[rule, int, query]{
		Load: func(ctx context.Context, q query) ([]rule, error) {
			<-ctx.Done()
			return []rule{{ID: 1, Name: "stale"}}, nil
		},
	}, EffectsConfig[rule, int]{})

	h.st.Dispatch(h.g.Load())
	h.st.Dispatch(h.g.Reset())

	h.expectNoOutcome(t, 100*time.Millisecond)
	if s := h.st.Peek(); s.Loaded || len(s.Data) != 0 {
		t.Errorf("cancelled load resurrected state: %+v", s)
	}
}

func TestMissingServicePanicsAtConstruction(t *testing.T) {
	g := newTestGroup()
	defer func() {
		if recover() == nil {
			t.Error("expected panic for enabled op without service")
		}
	}()
	NewEffects(g, &recorder{st: store.New(AsyncState[rule]{}, newTestReducer(g)), ch: make(chan store.Action, 1)},
		Services[rule, int, query]{
			Load: func(ctx context.Context, q query) ([]rule, error) { return nil, nil },
			// Add/Update/Delete missing though enabled.
		}, EffectsConfig[rule, int]{})
}

func TestMessageResolutionOrder(t *testing.T) {
	err := errors.New("underlying")

	spec := MessageSpec[rule]{}
	if got := spec.failure(err); got != "underlying" {
		t.Errorf("expected error's own message, got %q", got)
	}
	if got := spec.success(rule{}); got != "" {
		t.Errorf("expected empty success message, got %q", got)
	}

	spec = MessageSpec[rule]{Failuref: func(e error) string { return "derived: " + e.Error() }}
	if got := spec.failure(err); got != "derived: underlying" {
		t.Errorf("expected derived message, got %q", got)
	}

	spec = MessageSpec[rule]{
		Failure:  "static",
		Failuref: func(error) string { return "derived" },
	}
	if got := spec.failure(err); got != "static" {
		t.Errorf("static message must win, got %q", got)
	}

	spec = MessageSpec[rule]{
		Successf: func(r rule) string { return "saved " + r.Name },
	}
	if got := spec.success(rule{Name: "xss"}); got != "saved xss" {
		t.Errorf("expected derived success message, got %q", got)
	}
}
