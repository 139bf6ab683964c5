// Package dashboard wires the security-policy resources into one state
// tree: WAF policies (full CRUD), IPS policy summaries and SCM repositories
// (read-only). It owns the store, the effect pipelines and the selectors
// the serving layer reads from.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/secdash/secdash/pkg/policy"
	"github.com/secdash/secdash/pkg/state"
	"github.com/secdash/secdash/pkg/store"
)

// State is the dashboard's composite state tree. Each resource owns its
// sub-slice; actions never leak across them.
type State struct {
	WAF state.AsyncState[policy.WAFPolicy]        `json:"waf"`
	IPS state.AsyncState[policy.IPSPolicySummary] `json:"ips"`
	SCM state.AsyncState[policy.SCMRepository]    `json:"scm"`
}

// Feature names. Unique per resource within this state tree.
const (
	FeatureWAF = "waf/policies"
	FeatureIPS = "ips/summaries"
	FeatureSCM = "scm/repositories"
)

// Services carries the injected async operations per resource.
// client.Client's bundle methods produce these; tests inject fakes.
type Services struct {
	WAF state.Services[policy.WAFPolicy, string, policy.Query]
	IPS state.Services[policy.IPSPolicySummary, string, policy.Query]
	SCM state.Services[policy.SCMRepository, string, policy.Query]
}

// Config configures a Dashboard.
type Config struct {
	Services Services

	// Metrics instruments the store when set.
	Metrics *store.Metrics

	// Context is the base context for service calls.
	Context context.Context
}

// Dashboard is the assembled state loop for the security-policy views.
type Dashboard struct {
	st *store.Store[State]

	waf *state.Group[policy.WAFPolicy, string, policy.Query]
	ips *state.Group[policy.IPSPolicySummary, string, policy.Query]
	scm *state.Group[policy.SCMRepository, string, policy.Query]

	// Memoized views per resource.
	WAF *state.Selectors[policy.WAFPolicy]
	IPS *state.Selectors[policy.IPSPolicySummary]
	SCM *state.Selectors[policy.SCMRepository]
}

// New assembles the dashboard: groups, reducers, effects and selectors.
func New(cfg Config) *Dashboard {
	waf := state.NewGroup[policy.WAFPolicy, string, policy.Query](FeatureWAF).
		WithAdd().WithUpdate().WithDelete()
	ips := state.NewGroup[policy.IPSPolicySummary, string, policy.Query](FeatureIPS)
	scm := state.NewGroup[policy.SCMRepository, string, policy.Query](FeatureSCM)

	wafReducer := state.NewReducer(waf, state.ReducerConfig[policy.WAFPolicy, string]{
		OnAddSuccess: func(s state.AsyncState[policy.WAFPolicy], p policy.WAFPolicy) state.AsyncState[policy.WAFPolicy] {
			return state.Append(s, p)
		},
		OnUpdateSuccess: func(s state.AsyncState[policy.WAFPolicy], p policy.WAFPolicy) state.AsyncState[policy.WAFPolicy] {
			return state.ReplaceFunc(s, p, func(existing policy.WAFPolicy) bool {
				return existing.ID == p.ID
			})
		},
		OnDeleteSuccess: func(s state.AsyncState[policy.WAFPolicy], ids []string) state.AsyncState[policy.WAFPolicy] {
			deleted := make(map[string]bool, len(ids))
			for _, id := range ids {
				deleted[id] = true
			}
			return state.RemoveFunc(s, func(existing policy.WAFPolicy) bool {
				return deleted[existing.ID]
			})
		},
	})

	reducer := state.Combine(
		state.Mount(
			func(s State) state.AsyncState[policy.WAFPolicy] { return s.WAF },
			func(s State, sub state.AsyncState[policy.WAFPolicy]) State { s.WAF = sub; return s },
			wafReducer,
		),
		state.Mount(
			func(s State) state.AsyncState[policy.IPSPolicySummary] { return s.IPS },
			func(s State, sub state.AsyncState[policy.IPSPolicySummary]) State { s.IPS = sub; return s },
			state.NewReducer(ips, state.ReducerConfig[policy.IPSPolicySummary, string]{}),
		),
		state.Mount(
			func(s State) state.AsyncState[policy.SCMRepository] { return s.SCM },
			func(s State, sub state.AsyncState[policy.SCMRepository]) State { s.SCM = sub; return s },
			state.NewReducer(scm, state.ReducerConfig[policy.SCMRepository, string]{}),
		),
	)

	var storeOpts []store.Option[State]
	if cfg.Metrics != nil {
		storeOpts = append(storeOpts, store.WithMetrics[State](cfg.Metrics))
	}
	st := store.New(State{}, reducer, storeOpts...)

	state.NewEffects(waf, st, cfg.Services.WAF, state.EffectsConfig[policy.WAFPolicy, string]{
		Current: func() state.AsyncState[policy.WAFPolicy] { return st.Peek().WAF },
		Context: cfg.Context,
		Add: state.MessageSpec[policy.WAFPolicy]{
			Successf: func(p policy.WAFPolicy) string {
				return fmt.Sprintf("WAF policy %q created", p.Name)
			},
		},
		Update: state.MessageSpec[policy.WAFPolicy]{
			Successf: func(p policy.WAFPolicy) string {
				return fmt.Sprintf("WAF policy %q updated", p.Name)
			},
		},
		Delete: state.MessageSpec[[]string]{
			Successf: func(ids []string) string {
				return fmt.Sprintf("%d WAF policies deleted", len(ids))
			},
		},
	}).Register(st)

	state.NewEffects(ips, st, cfg.Services.IPS, state.EffectsConfig[policy.IPSPolicySummary, string]{
		Current: func() state.AsyncState[policy.IPSPolicySummary] { return st.Peek().IPS },
		Context: cfg.Context,
		Load: state.MessageSpec[[]policy.IPSPolicySummary]{
			Failure: "failed to load IPS policy summaries",
		},
	}).Register(st)

	state.NewEffects(scm, st, cfg.Services.SCM, state.EffectsConfig[policy.SCMRepository, string]{
		Current: func() state.AsyncState[policy.SCMRepository] { return st.Peek().SCM },
		Context: cfg.Context,
	}).Register(st)

	return &Dashboard{
		st:  st,
		waf: waf,
		ips: ips,
		scm: scm,
		WAF: state.NewSelectors(st, func(s State) state.AsyncState[policy.WAFPolicy] { return s.WAF }),
		IPS: state.NewSelectors(st, func(s State) state.AsyncState[policy.IPSPolicySummary] { return s.IPS }),
		SCM: state.NewSelectors(st, func(s State) state.AsyncState[policy.SCMRepository] { return s.SCM }),
	}
}

// Store exposes the underlying store for subscribers (the WebSocket hub,
// the snapshot exporter).
func (d *Dashboard) Store() *store.Store[State] { return d.st }

// LoadAll issues load intents for every resource. Resources with data
// already present are skipped by their effects.
func (d *Dashboard) LoadAll() {
	d.st.Dispatch(d.waf.Load())
	d.st.Dispatch(d.ips.Load())
	d.st.Dispatch(d.scm.Load())
}

// ReloadAll force-reloads every resource.
func (d *Dashboard) ReloadAll() {
	d.st.Dispatch(d.waf.Reload())
	d.st.Dispatch(d.ips.Reload())
	d.st.Dispatch(d.scm.Reload())
}

// LoadWAF issues a WAF policy load with query parameters.
func (d *Dashboard) LoadWAF(q policy.Query, forceReload bool) {
	d.st.Dispatch(d.waf.LoadWith(q, forceReload))
}

// AddWAFPolicy requests creation of a WAF policy.
func (d *Dashboard) AddWAFPolicy(p policy.WAFPolicy) {
	d.st.Dispatch(d.waf.Add(p))
}

// UpdateWAFPolicy requests an update of the WAF policy with the given id.
func (d *Dashboard) UpdateWAFPolicy(id string, patch policy.WAFPolicy) {
	d.st.Dispatch(d.waf.Update(id, patch))
}

// DeleteWAFPolicies requests removal of one or many WAF policies.
func (d *Dashboard) DeleteWAFPolicies(ids ...string) {
	d.st.Dispatch(d.waf.Delete(ids...))
}

// ResetWAF returns the WAF sub-slice to its default state.
func (d *Dashboard) ResetWAF() {
	d.st.Dispatch(d.waf.Reset())
}

// Snapshot serializes the current state tree to JSON.
func (d *Dashboard) Snapshot() ([]byte, error) {
	return json.Marshal(d.st.Peek())
}
