// Package policy defines the security-policy domain model shared by the
// dashboard state, the HTTP client and the demo API server: web application
// firewall policies, intrusion-prevention policy summaries and the
// source-control repositories covered by code scanning.
package policy

import "time"

// EnforcementMode is how a WAF policy treats matching traffic.
type EnforcementMode string

const (
	ModeDetect  EnforcementMode = "detect"
	ModeBlock   EnforcementMode = "block"
	ModeLearn   EnforcementMode = "learn"
	ModeOffline EnforcementMode = "offline"
)

// WAFPolicy is one web-application-firewall policy.
type WAFPolicy struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Mode          EnforcementMode `json:"mode"`
	ParanoiaLevel int             `json:"paranoiaLevel"`
	RuleOverrides []RuleOverride  `json:"ruleOverrides,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// RuleOverride disables or downgrades a single rule within a WAF policy.
type RuleOverride struct {
	RuleID   string `json:"ruleId"`
	Disabled bool   `json:"disabled"`
	Severity string `json:"severity,omitempty"`
}

// IPSPolicySummary is the aggregated view of one intrusion-prevention
// policy as shown on the dashboard.
type IPSPolicySummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	EnabledSignatures int    `json:"enabledSignatures"`
	CriticalCount     int    `json:"criticalCount"`
	HighCount         int    `json:"highCount"`
	MediumCount       int    `json:"mediumCount"`
	LowCount          int    `json:"lowCount"`
}

// ScanStatus is the state of the latest code scan on a repository.
type ScanStatus string

const (
	ScanPassed  ScanStatus = "passed"
	ScanFailed  ScanStatus = "failed"
	ScanPending ScanStatus = "pending"
)

// SCMRepository is one source-control repository under policy coverage.
type SCMRepository struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Provider         string     `json:"provider"`
	DefaultBranch    string     `json:"defaultBranch"`
	BranchProtection bool       `json:"branchProtection"`
	LastScan         ScanStatus `json:"lastScan"`
}

// Query filters collection loads. Zero value means no filtering.
type Query struct {
	// Search matches against names, case-insensitive.
	Search string `json:"search,omitempty"`

	// Mode restricts WAF policies to one enforcement mode.
	Mode EnforcementMode `json:"mode,omitempty"`
}
