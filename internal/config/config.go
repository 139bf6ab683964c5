// Package config loads and saves the secdash.json configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "secdash.json"

	// DefaultPort is the default dashboard server port.
	DefaultPort = 3000

	// DefaultHost is the default dashboard server host.
	DefaultHost = "localhost"

	// EnvAddress overrides the configured listen address when set.
	EnvAddress = "SECDASH_ADDR"
)

// Config represents the complete secdash.json configuration.
type Config struct {
	// Name is the deployment name, used as a metrics const label.
	Name string `json:"name,omitempty"`

	// Server contains dashboard server settings.
	Server ServerConfig `json:"server,omitempty"`

	// Upstream contains the policy API the dashboard loads from. Empty
	// means the server's own fixture API.
	Upstream UpstreamConfig `json:"upstream,omitempty"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Snapshot contains the S3 state-snapshot export settings.
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains dashboard server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`
}

// UpstreamConfig points the dashboard at a policy API.
type UpstreamConfig struct {
	// BaseURL is the API base URL (e.g., "https://policies.internal").
	BaseURL string `json:"baseUrl,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled mounts /metrics and instruments the store.
	Enabled bool `json:"enabled"`
}

// SnapshotConfig contains the S3 state-snapshot export settings.
type SnapshotConfig struct {
	// Enabled turns the periodic export on.
	Enabled bool `json:"enabled,omitempty"`

	// Bucket is the S3 bucket snapshots are written to.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the object key prefix (default: "secdash/state").
	Prefix string `json:"prefix,omitempty"`

	// Interval is the export period (e.g., "5m"). Default: "5m".
	Interval string `json:"interval,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Snapshot: SnapshotConfig{
			Prefix:   "secdash/state",
			Interval: "5m",
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// secdash.json in the directory; a missing file yields the defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := New()
			cfg.configPath = path
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills in zero fields the file left out.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Snapshot.Prefix == "" {
		c.Snapshot.Prefix = "secdash/state"
	}
	if c.Snapshot.Interval == "" {
		c.Snapshot.Interval = "5m"
	}
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Address returns the listen address, honoring the SECDASH_ADDR override.
func (c *Config) Address() string {
	if addr := os.Getenv(EnvAddress); addr != "" {
		return addr
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SnapshotInterval parses the configured export period.
func (c *Config) SnapshotInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Snapshot.Interval)
	if err != nil {
		return 0, fmt.Errorf("parse snapshot interval %q: %w", c.Snapshot.Interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("snapshot interval must be positive, got %q", c.Snapshot.Interval)
	}
	return d, nil
}

// Validate checks invariants that Load cannot default away.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Snapshot.Enabled {
		if c.Snapshot.Bucket == "" {
			return fmt.Errorf("snapshot export enabled but no bucket configured")
		}
		if _, err := c.SnapshotInterval(); err != nil {
			return err
		}
	}
	return nil
}
