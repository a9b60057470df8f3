// Package config loads and holds llamafix-proxy's configuration document.
//
// Dual-format YAML-preferred load/save, with an atomic.Value-backed Manager
// for safe concurrent reads during a running server, adapted to the
// document shape of original_source/llama-proxy/src/config/mod.rs
// (AppConfig: server, backend(s), fixes, stats, exporters).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort         = 8066
	DefaultHost         = "0.0.0.0"
	DefaultYAMLFilename = "config.yaml"
	DefaultJSONFilename = "config.json"
)

// ServerConfig is the proxy's own listen address.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// BackendNodeConfig describes one upstream llama.cpp-compatible backend.
type BackendNodeConfig struct {
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	APIKey         string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Model          string `yaml:"model,omitempty" json:"model,omitempty"`
}

// URL returns the backend node's base URL.
func (b BackendNodeConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", b.Host, b.Port)
}

// Timeout returns the configured per-request timeout as a time.Duration.
func (b BackendNodeConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// LoadBalancerConfig selects the strategy used across multiple backends.
type LoadBalancerConfig struct {
	Strategy string `yaml:"strategy" json:"strategy"`
}

// BackendConfig wraps either a single backend (the original spec's shape)
// or a pool of backends behind a load balancer, matching SPEC_FULL.md's
// expansion of the single-node original. Nodes resolves which of the two is
// in effect: a non-empty Backends list takes precedence over the inline
// single backend.
type BackendConfig struct {
	BackendNodeConfig `yaml:",inline"`
	Backends          []BackendNodeConfig `yaml:"backends,omitempty" json:"backends,omitempty"`
	LoadBalancer      LoadBalancerConfig  `yaml:"load_balancer,omitempty" json:"load_balancer,omitempty"`
}

// Nodes returns the configured backend pool: the `backends` list if given,
// otherwise the single inline backend as a one-element pool.
func (b BackendConfig) Nodes() []BackendNodeConfig {
	if len(b.Backends) > 0 {
		return b.Backends
	}
	return []BackendNodeConfig{b.BackendNodeConfig}
}

// FixModuleConfig is the per-fixer configuration entry under fixes.modules.
type FixModuleConfig struct {
	Enabled bool           `yaml:"enabled" json:"enabled"`
	Options map[string]any `yaml:",inline" json:"-"`
}

// FixesConfig toggles the response-fix pipeline as a whole and per-fixer.
type FixesConfig struct {
	Enabled bool                       `yaml:"enabled" json:"enabled"`
	Modules map[string]FixModuleConfig `yaml:"modules" json:"modules"`
}

// StatsFormat selects the stats collector's output rendering.
type StatsFormat string

const (
	StatsFormatPretty  StatsFormat = "pretty"
	StatsFormatJSON    StatsFormat = "json"
	StatsFormatCompact StatsFormat = "compact"
)

// StatsConfig controls the request-metrics collector.
type StatsConfig struct {
	Enabled     bool        `yaml:"enabled" json:"enabled"`
	Format      StatsFormat `yaml:"format" json:"format"`
	LogInterval int         `yaml:"log_interval" json:"log_interval"`
}

// InfluxDBConfig configures the optional InfluxDB line-protocol exporter.
type InfluxDBConfig struct {
	Enabled              bool   `yaml:"enabled" json:"enabled"`
	URL                  string `yaml:"url" json:"url"`
	Org                  string `yaml:"org" json:"org"`
	Bucket               string `yaml:"bucket" json:"bucket"`
	Token                string `yaml:"token" json:"token"`
	BatchSize            int    `yaml:"batch_size" json:"batch_size"`
	FlushIntervalSeconds int    `yaml:"flush_interval_seconds" json:"flush_interval_seconds"`
}

// ExportersConfig groups every metrics-exporter backend.
type ExportersConfig struct {
	InfluxDB InfluxDBConfig `yaml:"influxdb" json:"influxdb"`
}

// Config is the full application configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
	Fixes     FixesConfig     `yaml:"fixes" json:"fixes"`
	Stats     StatsConfig     `yaml:"stats" json:"stats"`
	Exporters ExportersConfig `yaml:"exporters" json:"exporters"`
}

// Manager loads, saves, and holds the active configuration, safe for
// concurrent reads from request-handling goroutines while a reload is in
// flight on another goroutine.
type Manager struct {
	baseDir     string
	yamlPath    string
	jsonPath    string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:  baseDir,
		yamlPath: filepath.Join(baseDir, DefaultYAMLFilename),
		jsonPath: filepath.Join(baseDir, DefaultJSONFilename),
	}
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Backend: BackendConfig{
			BackendNodeConfig: BackendNodeConfig{
				Host:           "127.0.0.1",
				Port:           8080,
				TimeoutSeconds: 300,
			},
			LoadBalancer: LoadBalancerConfig{Strategy: "round_robin"},
		},
		Fixes: FixesConfig{
			Enabled: true,
			Modules: map[string]FixModuleConfig{
				"toolcall_null_index_fix":      {Enabled: true},
				"toolcall_malformed_arguments": {Enabled: true},
				"toolcall_bad_filepath":        {Enabled: true},
			},
		},
		Stats: StatsConfig{Enabled: true, Format: StatsFormatPretty, LogInterval: 10},
	}
}

// Load reads the configuration document, preferring YAML over JSON when
// both are present, and falling back to built-in defaults when neither
// file exists.
func (m *Manager) Load() (*Config, error) {
	var cfg Config

	switch {
	case m.HasYAML():
		loaded, err := m.loadYAML()
		if err != nil {
			return nil, fmt.Errorf("load YAML config: %w", err)
		}
		cfg = loaded
	case m.HasJSON():
		loaded, err := m.loadJSON()
		if err != nil {
			return nil, fmt.Errorf("load JSON config: %w", err)
		}
		cfg = loaded
	default:
		cfg = defaultConfig()
	}

	m.applyDefaults(&cfg)
	m.configValue.Store(&cfg)
	return &cfg, nil
}

func (m *Manager) loadYAML() (Config, error) {
	var cfg Config
	data, err := os.ReadFile(m.yamlPath)
	if err != nil {
		return cfg, fmt.Errorf("read YAML config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal YAML config: %w", err)
	}
	return cfg, nil
}

func (m *Manager) loadJSON() (Config, error) {
	var cfg Config
	data, err := os.ReadFile(m.jsonPath)
	if err != nil {
		return cfg, fmt.Errorf("read JSON config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal JSON config: %w", err)
	}
	return cfg, nil
}

func (m *Manager) applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Backend.LoadBalancer.Strategy == "" {
		cfg.Backend.LoadBalancer.Strategy = "round_robin"
	}
	if cfg.Backend.TimeoutSeconds == 0 && len(cfg.Backend.Backends) == 0 {
		cfg.Backend.TimeoutSeconds = 300
	}
	if cfg.Fixes.Modules == nil {
		cfg.Fixes.Modules = map[string]FixModuleConfig{}
	}
	if cfg.Stats.Format == "" {
		cfg.Stats.Format = StatsFormatPretty
	}
}

// Get returns the active configuration, loading it from disk on first use.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}
	cfg, err := m.Load()
	if err != nil {
		fallback := defaultConfig()
		return &fallback
	}
	return cfg
}

// Save writes cfg as YAML (the preferred format for new writes) and stores
// it as the active configuration.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal YAML config: %w", err)
	}
	if err := os.WriteFile(m.yamlPath, data, 0o644); err != nil {
		return fmt.Errorf("write YAML config file: %w", err)
	}
	m.configValue.Store(cfg)
	return nil
}

func (m *Manager) HasYAML() bool {
	_, err := os.Stat(m.yamlPath)
	return err == nil
}

func (m *Manager) HasJSON() bool {
	_, err := os.Stat(m.jsonPath)
	return err == nil
}

func (m *Manager) Exists() bool {
	return m.HasYAML() || m.HasJSON()
}

func (m *Manager) YAMLPath() string { return m.yamlPath }
func (m *Manager) JSONPath() string { return m.jsonPath }
