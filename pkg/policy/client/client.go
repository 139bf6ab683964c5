// Package client is the HTTP client for the secdash policy API. Its
// service bundles plug straight into the state layer as the injected
// async operations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/secdash/secdash/pkg/policy"
	"github.com/secdash/secdash/pkg/state"
)

// Client talks to a secdash policy API.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
// Timeout policy belongs to the caller; the default client times out
// after 15 seconds.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a policy API client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the error envelope the policy API returns on non-2xx.
type apiError struct {
	Error string `json:"error"`
}

// do performs one request and decodes the JSON response into out (unless
// out is nil). Non-2xx responses become errors carrying the server's
// message when one was sent.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil && envelope.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, envelope.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func queryString(q policy.Query) string {
	values := url.Values{}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Mode != "" {
		values.Set("mode", string(q.Mode))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// ListWAFPolicies fetches WAF policies matching q.
func (c *Client) ListWAFPolicies(ctx context.Context, q policy.Query) ([]policy.WAFPolicy, error) {
	var out []policy.WAFPolicy
	err := c.do(ctx, http.MethodGet, "/api/waf/policies"+queryString(q), nil, &out)
	return out, err
}

// CreateWAFPolicy creates a WAF policy and returns the stored version.
func (c *Client) CreateWAFPolicy(ctx context.Context, p policy.WAFPolicy) (policy.WAFPolicy, error) {
	var out policy.WAFPolicy
	err := c.do(ctx, http.MethodPost, "/api/waf/policies", p, &out)
	return out, err
}

// UpdateWAFPolicy applies patch to the policy with the given id.
func (c *Client) UpdateWAFPolicy(ctx context.Context, id string, patch policy.WAFPolicy) (policy.WAFPolicy, error) {
	var out policy.WAFPolicy
	err := c.do(ctx, http.MethodPut, "/api/waf/policies/"+url.PathEscape(id), patch, &out)
	return out, err
}

// DeleteWAFPolicies removes the policies with the given ids.
func (c *Client) DeleteWAFPolicies(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := c.do(ctx, http.MethodDelete, "/api/waf/policies/"+url.PathEscape(id), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// ListIPSSummaries fetches IPS policy summaries matching q.
func (c *Client) ListIPSSummaries(ctx context.Context, q policy.Query) ([]policy.IPSPolicySummary, error) {
	var out []policy.IPSPolicySummary
	err := c.do(ctx, http.MethodGet, "/api/ips/summaries"+queryString(q), nil, &out)
	return out, err
}

// ListSCMRepositories fetches the repositories under policy coverage.
func (c *Client) ListSCMRepositories(ctx context.Context, q policy.Query) ([]policy.SCMRepository, error) {
	var out []policy.SCMRepository
	err := c.do(ctx, http.MethodGet, "/api/scm/repositories"+queryString(q), nil, &out)
	return out, err
}

// WAFPolicies bundles the WAF operations as injectable state services.
func (c *Client) WAFPolicies() state.Services[policy.WAFPolicy, string, policy.Query] {
	return state.Services[policy.WAFPolicy, string, policy.Query]{
		Load:   c.ListWAFPolicies,
		Add:    c.CreateWAFPolicy,
		Update: c.UpdateWAFPolicy,
		Delete: c.DeleteWAFPolicies,
	}
}

// IPSSummaries bundles the IPS summary load as an injectable state service.
// Summaries are read-only on the dashboard.
func (c *Client) IPSSummaries() state.Services[policy.IPSPolicySummary, string, policy.Query] {
	return state.Services[policy.IPSPolicySummary, string, policy.Query]{
		Load: c.ListIPSSummaries,
	}
}

// SCMRepositories bundles the repository load as an injectable state service.
func (c *Client) SCMRepositories() state.Services[policy.SCMRepository, string, policy.Query] {
	return state.Services[policy.SCMRepository, string, policy.Query]{
		Load: c.ListSCMRepositories,
	}
}
