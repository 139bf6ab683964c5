package state

// Ops records which operations a group generates actions for.
type Ops struct {
	Load   bool
	Add    bool
	Update bool
	Delete bool
}

// Group is the action group for one resource: a factory for the typed
// intent and outcome actions of its enabled operations. T is the item type,
// ID the item identifier, Q the load query parameters.
//
// A group is built once at wiring time and is immutable afterwards. Feature
// names scope the action tags; the caller must keep them unique per state
// tree, since two resources sharing a feature name would answer each
// other's actions.
type Group[T any, ID comparable, Q any] struct {
	feature      string
	ops          Ops
	defaultState func() AsyncState[T]
}

// NewGroup creates an action group for the given feature name.
// Load is enabled by default; enable mutations with WithAdd, WithUpdate and
// WithDelete. The returned group is configured by chaining before first use.
func NewGroup[T any, ID comparable, Q any](feature string) *Group[T, ID, Q] {
	if feature == "" {
		panic("state: feature name must not be empty")
	}
	return &Group[T, ID, Q]{
		feature: feature,
		ops:     Ops{Load: true},
	}
}

// WithAdd enables the add operation.
func (g *Group[T, ID, Q]) WithAdd() *Group[T, ID, Q] {
	g.ops.Add = true
	return g
}

// WithUpdate enables the update operation.
func (g *Group[T, ID, Q]) WithUpdate() *Group[T, ID, Q] {
	g.ops.Update = true
	return g
}

// WithDelete enables the delete operation.
func (g *Group[T, ID, Q]) WithDelete() *Group[T, ID, Q] {
	g.ops.Delete = true
	return g
}

// WithoutLoad disables the load operation for write-only resources.
func (g *Group[T, ID, Q]) WithoutLoad() *Group[T, ID, Q] {
	g.ops.Load = false
	return g
}

// WithDefault installs the default-state factory used for the initial state
// and for Reset. Resources whose default payload is non-trivial set it here;
// without it, Reset falls back to the zero AsyncState (no data, all flags
// false).
func (g *Group[T, ID, Q]) WithDefault(fn func() AsyncState[T]) *Group[T, ID, Q] {
	g.defaultState = fn
	return g
}

// Feature returns the group's feature name.
func (g *Group[T, ID, Q]) Feature() string { return g.feature }

// Ops returns the group's enabled operations.
func (g *Group[T, ID, Q]) Ops() Ops { return g.ops }

// DefaultState constructs the group's default sub-state.
func (g *Group[T, ID, Q]) DefaultState() AsyncState[T] {
	if g.defaultState != nil {
		return g.defaultState()
	}
	return AsyncState[T]{}
}

func (g *Group[T, ID, Q]) require(enabled bool, op string) {
	if !enabled {
		panic("state: operation " + op + " not enabled for feature " + g.feature)
	}
}

// ----------------------------------------------------------------------------
// Action types. One struct per operation kind and outcome; each carries the
// feature tag of the group that built it.
// ----------------------------------------------------------------------------

// LoadAction requests the collection be (re)fetched.
type LoadAction[Q any] struct {
	feature string

	// Params are passed through to the injected load service.
	Params Q

	// ForceReload fetches even when data is already present.
	ForceReload bool
}

func (a LoadAction[Q]) ActionType() string { return "[" + a.feature + "] load" }

// LoadSuccessAction reports a completed load.
type LoadSuccessAction[T any] struct {
	feature string
	Items   []T
	Message string
}

func (a LoadSuccessAction[T]) ActionType() string { return "[" + a.feature + "] load success" }

// LoadFailureAction reports a failed load.
type LoadFailureAction struct {
	feature string
	Message string
}

func (a LoadFailureAction) ActionType() string { return "[" + a.feature + "] load failure" }

// AddAction requests a new item be created.
type AddAction[T any] struct {
	feature string
	Payload T
}

func (a AddAction[T]) ActionType() string { return "[" + a.feature + "] add" }

// AddSuccessAction reports a completed add, carrying the created item.
type AddSuccessAction[T any] struct {
	feature string
	Item    T
	Message string
}

func (a AddSuccessAction[T]) ActionType() string { return "[" + a.feature + "] add success" }

// AddFailureAction reports a failed add.
type AddFailureAction struct {
	feature string
	Message string
}

func (a AddFailureAction) ActionType() string { return "[" + a.feature + "] add failure" }

// UpdateAction requests an existing item be changed. Patch carries the new
// field values; which fields count is a contract between caller and service.
type UpdateAction[T any, ID comparable] struct {
	feature string
	ID      ID
	Patch   T
}

func (a UpdateAction[T, ID]) ActionType() string { return "[" + a.feature + "] update" }

// UpdateSuccessAction reports a completed update, carrying the stored item.
type UpdateSuccessAction[T any] struct {
	feature string
	Item    T
	Message string
}

func (a UpdateSuccessAction[T]) ActionType() string { return "[" + a.feature + "] update success" }

// UpdateFailureAction reports a failed update.
type UpdateFailureAction struct {
	feature string
	Message string
}

func (a UpdateFailureAction) ActionType() string { return "[" + a.feature + "] update failure" }

// DeleteAction requests one or many items be removed.
type DeleteAction[ID comparable] struct {
	feature string
	IDs     []ID
}

func (a DeleteAction[ID]) ActionType() string { return "[" + a.feature + "] delete" }

// DeleteSuccessAction reports a completed delete.
type DeleteSuccessAction[ID comparable] struct {
	feature string
	IDs     []ID
	Message string
}

func (a DeleteSuccessAction[ID]) ActionType() string { return "[" + a.feature + "] delete success" }

// DeleteFailureAction reports a failed delete.
type DeleteFailureAction struct {
	feature string
	Message string
}

func (a DeleteFailureAction) ActionType() string { return "[" + a.feature + "] delete failure" }

// ResetAction returns the sub-slice to its default state.
type ResetAction struct {
	feature string
}

func (a ResetAction) ActionType() string { return "[" + a.feature + "] reset" }

// ----------------------------------------------------------------------------
// Constructors. Success, failure and reset counterparts always exist once
// the base operation is enabled; constructing an action for a disabled
// operation is a programming error and panics.
// ----------------------------------------------------------------------------

// Load builds a load intent with zero-value params.
func (g *Group[T, ID, Q]) Load() LoadAction[Q] {
	g.require(g.ops.Load, "load")
	return LoadAction[Q]{feature: g.feature}
}

// LoadWith builds a load intent with explicit query params.
func (g *Group[T, ID, Q]) LoadWith(params Q, forceReload bool) LoadAction[Q] {
	g.require(g.ops.Load, "load")
	return LoadAction[Q]{feature: g.feature, Params: params, ForceReload: forceReload}
}

// Reload builds a load intent that bypasses the already-loaded check.
func (g *Group[T, ID, Q]) Reload() LoadAction[Q] {
	g.require(g.ops.Load, "load")
	return LoadAction[Q]{feature: g.feature, ForceReload: true}
}

// LoadSuccess builds a load outcome carrying the fetched items.
func (g *Group[T, ID, Q]) LoadSuccess(items []T, message string) LoadSuccessAction[T] {
	g.require(g.ops.Load, "load")
	return LoadSuccessAction[T]{feature: g.feature, Items: items, Message: message}
}

// LoadFailure builds a failed-load outcome.
func (g *Group[T, ID, Q]) LoadFailure(message string) LoadFailureAction {
	g.require(g.ops.Load, "load")
	return LoadFailureAction{feature: g.feature, Message: message}
}

// Add builds an add intent.
func (g *Group[T, ID, Q]) Add(payload T) AddAction[T] {
	g.require(g.ops.Add, "add")
	return AddAction[T]{feature: g.feature, Payload: payload}
}

// AddSuccess builds an add outcome carrying the created item.
func (g *Group[T, ID, Q]) AddSuccess(item T, message string) AddSuccessAction[T] {
	g.require(g.ops.Add, "add")
	return AddSuccessAction[T]{feature: g.feature, Item: item, Message: message}
}

// AddFailure builds a failed-add outcome.
func (g *Group[T, ID, Q]) AddFailure(message string) AddFailureAction {
	g.require(g.ops.Add, "add")
	return AddFailureAction{feature: g.feature, Message: message}
}

// Update builds an update intent for the item with the given id.
func (g *Group[T, ID, Q]) Update(id ID, patch T) UpdateAction[T, ID] {
	g.require(g.ops.Update, "update")
	return UpdateAction[T, ID]{feature: g.feature, ID: id, Patch: patch}
}

// UpdateSuccess builds an update outcome carrying the stored item.
func (g *Group[T, ID, Q]) UpdateSuccess(item T, message string) UpdateSuccessAction[T] {
	g.require(g.ops.Update, "update")
	return UpdateSuccessAction[T]{feature: g.feature, Item: item, Message: message}
}

// UpdateFailure builds a failed-update outcome.
func (g *Group[T, ID, Q]) UpdateFailure(message string) UpdateFailureAction {
	g.require(g.ops.Update, "update")
	return UpdateFailureAction{feature: g.feature, Message: message}
}

// Delete builds a delete intent for one or many ids.
func (g *Group[T, ID, Q]) Delete(ids ...ID) DeleteAction[ID] {
	g.require(g.ops.Delete, "delete")
	return DeleteAction[ID]{feature: g.feature, IDs: ids}
}

// DeleteSuccess builds a delete outcome.
func (g *Group[T, ID, Q]) DeleteSuccess(ids []ID, message string) DeleteSuccessAction[ID] {
	g.require(g.ops.Delete, "delete")
	return DeleteSuccessAction[ID]{feature: g.feature, IDs: ids, Message: message}
}

// DeleteFailure builds a failed-delete outcome.
func (g *Group[T, ID, Q]) DeleteFailure(message string) DeleteFailureAction {
	g.require(g.ops.Delete, "delete")
	return DeleteFailureAction{feature: g.feature, Message: message}
}

// Reset builds the reset action. Reset is always available.
func (g *Group[T, ID, Q]) Reset() ResetAction {
	return ResetAction{feature: g.feature}
}
