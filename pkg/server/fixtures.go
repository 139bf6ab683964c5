package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/secdash/secdash/pkg/policy"
)

// FixtureStore is the in-memory policy repository the demo API serves from.
// It is the upstream the dashboard client talks to; all methods are safe for
// concurrent use.
type FixtureStore struct {
	mu     sync.RWMutex
	nextID int
	waf    map[string]policy.WAFPolicy
	ips    []policy.IPSPolicySummary
	scm    []policy.SCMRepository
}

// NewFixtureStore returns a store seeded with representative policies.
func NewFixtureStore() *FixtureStore {
	now := time.Now().UTC()
	f := &FixtureStore{
		nextID: 1,
		waf:    make(map[string]policy.WAFPolicy),
		ips: []policy.IPSPolicySummary{
			{ID: "ips-core", Name: "core-network", EnabledSignatures: 4212, CriticalCount: 3, HighCount: 17, MediumCount: 96, LowCount: 220},
			{ID: "ips-dmz", Name: "dmz", EnabledSignatures: 5110, CriticalCount: 9, HighCount: 41, MediumCount: 154, LowCount: 380},
		},
		scm: []policy.SCMRepository{
			{ID: "scm-api", Name: "api", Provider: "github", DefaultBranch: "main", BranchProtection: true, LastScan: policy.ScanPassed},
			{ID: "scm-web", Name: "web", Provider: "github", DefaultBranch: "main", BranchProtection: true, LastScan: policy.ScanFailed},
			{ID: "scm-infra", Name: "infra", Provider: "gitlab", DefaultBranch: "master", BranchProtection: false, LastScan: policy.ScanPending},
		},
	}
	f.insertWAF(policy.WAFPolicy{Name: "edge", Mode: policy.ModeBlock, ParanoiaLevel: 2, UpdatedAt: now})
	f.insertWAF(policy.WAFPolicy{Name: "internal-apps", Mode: policy.ModeDetect, ParanoiaLevel: 1, UpdatedAt: now})
	return f
}

// insertWAF assigns an ID and stores p. Caller must not hold mu.
func (f *FixtureStore) insertWAF(p policy.WAFPolicy) policy.WAFPolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = fmt.Sprintf("waf-%d", f.nextID)
	f.nextID++
	f.waf[p.ID] = p
	return p
}

func matchesSearch(name, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(search))
}

// ListWAF returns WAF policies matching q, ordered by ID.
func (f *FixtureStore) ListWAF(q policy.Query) []policy.WAFPolicy {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]policy.WAFPolicy, 0, len(f.waf))
	for _, p := range f.waf {
		if !matchesSearch(p.Name, q.Search) {
			continue
		}
		if q.Mode != "" && p.Mode != q.Mode {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateWAF stores a new policy and returns it with its assigned ID.
func (f *FixtureStore) CreateWAF(p policy.WAFPolicy) (policy.WAFPolicy, error) {
	if p.Name == "" {
		return policy.WAFPolicy{}, fmt.Errorf("policy name is required")
	}
	f.mu.RLock()
	for _, existing := range f.waf {
		if existing.Name == p.Name {
			f.mu.RUnlock()
			return policy.WAFPolicy{}, fmt.Errorf("policy name %q already in use", p.Name)
		}
	}
	f.mu.RUnlock()
	p.UpdatedAt = time.Now().UTC()
	return f.insertWAF(p), nil
}

// UpdateWAF applies patch to the policy with the given id.
func (f *FixtureStore) UpdateWAF(id string, patch policy.WAFPolicy) (policy.WAFPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.waf[id]
	if !ok {
		return policy.WAFPolicy{}, fmt.Errorf("policy %q not found", id)
	}
	if patch.Name != "" {
		existing.Name = patch.Name
	}
	if patch.Mode != "" {
		existing.Mode = patch.Mode
	}
	if patch.ParanoiaLevel != 0 {
		existing.ParanoiaLevel = patch.ParanoiaLevel
	}
	if patch.RuleOverrides != nil {
		existing.RuleOverrides = patch.RuleOverrides
	}
	existing.UpdatedAt = time.Now().UTC()
	f.waf[id] = existing
	return existing, nil
}

// DeleteWAF removes the policy with the given id.
func (f *FixtureStore) DeleteWAF(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.waf[id]; !ok {
		return fmt.Errorf("policy %q not found", id)
	}
	delete(f.waf, id)
	return nil
}

// ListIPS returns IPS policy summaries matching q.
func (f *FixtureStore) ListIPS(q policy.Query) []policy.IPSPolicySummary {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]policy.IPSPolicySummary, 0, len(f.ips))
	for _, s := range f.ips {
		if matchesSearch(s.Name, q.Search) {
			out = append(out, s)
		}
	}
	return out
}

// ListSCM returns repositories matching q.
func (f *FixtureStore) ListSCM(q policy.Query) []policy.SCMRepository {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]policy.SCMRepository, 0, len(f.scm))
	for _, r := range f.scm {
		if matchesSearch(r.Name, q.Search) {
			out = append(out, r)
		}
	}
	return out
}
