package state

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/secdash/secdash/pkg/store"
)

// tracerName identifies the effects tracer.
const tracerName = "github.com/secdash/secdash/pkg/state"

// Dispatcher accepts outcome actions from effect pipelines.
// *store.Store implements it.
//
// DispatchIf must evaluate the guard under the same ordering that serializes
// Dispatch calls and apply the action only when the guard holds; effects rely
// on that to make the superseded-outcome check atomic with the dispatch.
type Dispatcher interface {
	Dispatch(a store.Action)
	DispatchIf(guard func() bool, a store.Action) bool
}

// ActionSource exposes the dispatched-action stream effects subscribe to.
// *store.Store implements it.
type ActionSource interface {
	SubscribeActions(fn func(store.Action))
}

// Services carries the injected async operations for one resource. Only the
// operations enabled on the group need to be set. These are the sole I/O
// boundary of the state layer; HTTP clients and the like live behind them.
type Services[T any, ID comparable, Q any] struct {
	Load   func(ctx context.Context, params Q) ([]T, error)
	Add    func(ctx context.Context, payload T) (T, error)
	Update func(ctx context.Context, id ID, patch T) (T, error)
	Delete func(ctx context.Context, ids []ID) error
}

// MessageSpec resolves the human-readable message attached to an outcome.
// Success order: static Success, then Successf over the result, else empty.
// Failure order: static Failure, then Failuref over the error, else the
// error's own message.
type MessageSpec[R any] struct {
	Success  string
	Successf func(R) string
	Failure  string
	Failuref func(error) string
}

func (m MessageSpec[R]) success(r R) string {
	if m.Success != "" {
		return m.Success
	}
	if m.Successf != nil {
		return m.Successf(r)
	}
	return ""
}

func (m MessageSpec[R]) failure(err error) string {
	if m.Failure != "" {
		return m.Failure
	}
	if m.Failuref != nil {
		return m.Failuref(err)
	}
	return err.Error()
}

// EffectsConfig customizes an effects pipeline.
type EffectsConfig[T any, ID comparable] struct {
	// Current projects the resource's current sub-state. When set, a load
	// intent whose state already has data (Loaded true) and no ForceReload
	// is skipped entirely: no service call, no outcome action. When nil,
	// every load intent fetches.
	Current func() AsyncState[T]

	// Context is the base context for service calls.
	// Defaults to context.Background().
	Context context.Context

	// Outcome message resolution per operation.
	Load   MessageSpec[[]T]
	Add    MessageSpec[T]
	Update MessageSpec[T]
	Delete MessageSpec[[]ID]
}

// Effects is the request-orchestration pipeline for one resource. It
// watches the action stream for the group's intents, invokes the injected
// service, and dispatches the matching outcome.
//
// Concurrency per operation kind:
//
//   - load: switch-latest. A new load intent cancels the in-flight one;
//     a superseded result is discarded via a sequence check even when the
//     service ignored the cancellation.
//   - add/update/delete: drop-while-busy. A duplicate intent while one is
//     in flight is dropped, not queued and not cancelling.
//
// The pipeline never raises: service errors and panics both become failure
// actions, and a failure never terminates the subscription. Reset bumps the
// pipeline's epoch so a late outcome can never resurrect stale data.
type Effects[T any, ID comparable, Q any] struct {
	g   *Group[T, ID, Q]
	d   Dispatcher
	svc Services[T, ID, Q]
	cfg EffectsConfig[T, ID]

	tracer trace.Tracer

	// mu guards the load generation state and the epoch.
	mu         sync.Mutex
	loadSeq    uint64
	loadCancel context.CancelFunc
	epoch      uint64

	// In-flight gates for the drop-while-busy operations.
	adding   atomic.Bool
	updating atomic.Bool
	deleting atomic.Bool
}

// NewEffects builds the effects pipeline for g. Every operation enabled on
// the group must have its service injected; a missing service is a wiring
// error and panics here rather than at the first intent.
func NewEffects[T any, ID comparable, Q any](g *Group[T, ID, Q], d Dispatcher, svc Services[T, ID, Q], cfg EffectsConfig[T, ID]) *Effects[T, ID, Q] {
	if g.ops.Load && svc.Load == nil {
		panic("state: load enabled for " + g.feature + " but Services.Load is nil")
	}
	if g.ops.Add && svc.Add == nil {
		panic("state: add enabled for " + g.feature + " but Services.Add is nil")
	}
	if g.ops.Update && svc.Update == nil {
		panic("state: update enabled for " + g.feature + " but Services.Update is nil")
	}
	if g.ops.Delete && svc.Delete == nil {
		panic("state: delete enabled for " + g.feature + " but Services.Delete is nil")
	}

	return &Effects[T, ID, Q]{
		g:      g,
		d:      d,
		svc:    svc,
		cfg:    cfg,
		tracer: otel.Tracer(tracerName),
	}
}

// Register subscribes the pipeline to src's action stream.
func (e *Effects[T, ID, Q]) Register(src ActionSource) {
	src.SubscribeActions(e.handle)
}

// handle runs synchronously on the dispatching goroutine. It only inspects
// the action and arms a goroutine; outcomes are dispatched from there.
func (e *Effects[T, ID, Q]) handle(a store.Action) {
	switch act := a.(type) {
	case LoadAction[Q]:
		if act.feature == e.g.feature && e.g.ops.Load {
			e.startLoad(act)
		}
	case AddAction[T]:
		if act.feature == e.g.feature && e.g.ops.Add {
			e.startAdd(act)
		}
	case UpdateAction[T, ID]:
		if act.feature == e.g.feature && e.g.ops.Update {
			e.startUpdate(act)
		}
	case DeleteAction[ID]:
		if act.feature == e.g.feature && e.g.ops.Delete {
			e.startDelete(act)
		}
	case ResetAction:
		if act.feature == e.g.feature {
			e.reset()
		}
	}
}

func (e *Effects[T, ID, Q]) baseContext() context.Context {
	if e.cfg.Context != nil {
		return e.cfg.Context
	}
	return context.Background()
}

// staleEpoch reports whether a reset happened since the captured epoch.
func (e *Effects[T, ID, Q]) staleEpoch(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch != epoch
}

// currentLoad reports whether the load identified by seq/epoch is still the
// latest one. Called from DispatchIf guards, so the answer is bound to the
// dispatch that consumes it.
func (e *Effects[T, ID, Q]) currentLoad(seq, epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadSeq == seq && e.epoch == epoch
}

func (e *Effects[T, ID, Q]) startLoad(act LoadAction[Q]) {
	// Skip when data is already present and no reload was forced.
	if !act.ForceReload && e.cfg.Current != nil && e.cfg.Current().Loaded {
		return
	}

	e.mu.Lock()
	if e.loadCancel != nil {
		e.loadCancel()
	}
	e.loadSeq++
	seq := e.loadSeq
	epoch := e.epoch
	ctx, cancel := context.WithCancel(e.baseContext())
	e.loadCancel = cancel
	e.mu.Unlock()

	go func() {
		defer cancel()

		ctx, span := e.startSpan(ctx, "load")
		defer span.End()

		items, err := e.runLoad(ctx, act.Params)

		var outcome store.Action
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			outcome = e.g.LoadFailure(e.cfg.Load.failure(err))
		} else {
			outcome = e.g.LoadSuccess(items, e.cfg.Load.success(items))
		}

		// The staleness decision runs inside the dispatch, not before
		// it: a check made out here could pass and still apply after a
		// newer load's outcome once this goroutine wins the lock.
		applied := e.d.DispatchIf(func() bool {
			return e.currentLoad(seq, epoch) && ctx.Err() == nil
		}, outcome)
		if !applied {
			span.SetAttributes(attribute.Bool("secdash.discarded", true))
		}
	}()
}

func (e *Effects[T, ID, Q]) startAdd(act AddAction[T]) {
	if !e.adding.CompareAndSwap(false, true) {
		return
	}

	e.mu.Lock()
	epoch := e.epoch
	e.mu.Unlock()

	go func() {
		defer e.adding.Store(false)

		ctx, span := e.startSpan(e.baseContext(), "add")
		defer span.End()

		item, err := e.runAdd(ctx, act.Payload)

		var outcome store.Action
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			outcome = e.g.AddFailure(e.cfg.Add.failure(err))
		} else {
			outcome = e.g.AddSuccess(item, e.cfg.Add.success(item))
		}

		if !e.d.DispatchIf(func() bool { return !e.staleEpoch(epoch) }, outcome) {
			span.SetAttributes(attribute.Bool("secdash.discarded", true))
		}
	}()
}

func (e *Effects[T, ID, Q]) startUpdate(act UpdateAction[T, ID]) {
	if !e.updating.CompareAndSwap(false, true) {
		return
	}

	e.mu.Lock()
	epoch := e.epoch
	e.mu.Unlock()

	go func() {
		defer e.updating.Store(false)

		ctx, span := e.startSpan(e.baseContext(), "update")
		defer span.End()

		item, err := e.runUpdate(ctx, act.ID, act.Patch)

		var outcome store.Action
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			outcome = e.g.UpdateFailure(e.cfg.Update.failure(err))
		} else {
			outcome = e.g.UpdateSuccess(item, e.cfg.Update.success(item))
		}

		if !e.d.DispatchIf(func() bool { return !e.staleEpoch(epoch) }, outcome) {
			span.SetAttributes(attribute.Bool("secdash.discarded", true))
		}
	}()
}

func (e *Effects[T, ID, Q]) startDelete(act DeleteAction[ID]) {
	if !e.deleting.CompareAndSwap(false, true) {
		return
	}

	e.mu.Lock()
	epoch := e.epoch
	e.mu.Unlock()

	go func() {
		defer e.deleting.Store(false)

		ctx, span := e.startSpan(e.baseContext(), "delete")
		defer span.End()

		err := e.runDelete(ctx, act.IDs)

		var outcome store.Action
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			outcome = e.g.DeleteFailure(e.cfg.Delete.failure(err))
		} else {
			outcome = e.g.DeleteSuccess(act.IDs, e.cfg.Delete.success(act.IDs))
		}

		if !e.d.DispatchIf(func() bool { return !e.staleEpoch(epoch) }, outcome) {
			span.SetAttributes(attribute.Bool("secdash.discarded", true))
		}
	}()
}

// reset invalidates every in-flight operation: the load is cancelled
// outright, and any still-running mutation's outcome is discarded by the
// epoch bump. Gates release when their service call returns.
func (e *Effects[T, ID, Q]) reset() {
	e.mu.Lock()
	e.epoch++
	e.loadSeq++
	if e.loadCancel != nil {
		e.loadCancel()
		e.loadCancel = nil
	}
	e.mu.Unlock()
}

func (e *Effects[T, ID, Q]) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, e.g.feature+"."+op, trace.WithAttributes(
		attribute.String("secdash.feature", e.g.feature),
		attribute.String("secdash.operation", op),
	))
}

// The run* wrappers contain service panics so a misbehaving injected
// operation surfaces as a failure action instead of killing the pipeline.

func (e *Effects[T, ID, Q]) runLoad(ctx context.Context, params Q) (items []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load service panicked: %v", r)
		}
	}()
	return e.svc.Load(ctx, params)
}

func (e *Effects[T, ID, Q]) runAdd(ctx context.Context, payload T) (item T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("add service panicked: %v", r)
		}
	}()
	return e.svc.Add(ctx, payload)
}

func (e *Effects[T, ID, Q]) runUpdate(ctx context.Context, id ID, patch T) (item T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update service panicked: %v", r)
		}
	}()
	return e.svc.Update(ctx, id, patch)
}

func (e *Effects[T, ID, Q]) runDelete(ctx context.Context, ids []ID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delete service panicked: %v", r)
		}
	}()
	return e.svc.Delete(ctx, ids)
}
