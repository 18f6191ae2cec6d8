// Package config loads and holds the gateway configuration. YAML on disk,
// GATEWAY_ environment variables on top, hot-swappable via an atomic value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/Davincible/ai-gateway-go/internal/credential"
	"github.com/Davincible/ai-gateway-go/internal/injection"
	"github.com/Davincible/ai-gateway-go/internal/resilience"
	"github.com/Davincible/ai-gateway-go/internal/router"
)

const (
	DefaultPort           = 6970
	DefaultHost           = "127.0.0.1"
	DefaultConfigFilename = "config.yaml"

	envPrefix = "GATEWAY_"
)

// Provider configures one upstream: its protocol kind and the credentials
// the pool draws from.
type Provider struct {
	Name        string           `koanf:"name" yaml:"name"`
	Kind        string           `koanf:"kind" yaml:"kind"`
	BaseURL     string           `koanf:"base_url" yaml:"base_url,omitempty"`
	ProfileARN  string           `koanf:"profile_arn" yaml:"profile_arn,omitempty"`
	Strategy    string           `koanf:"strategy" yaml:"strategy,omitempty"`
	Credentials []CredentialSpec `koanf:"credentials" yaml:"credentials"`
}

// CredentialSpec is one pool entry in the config file.
type CredentialSpec struct {
	UUID        string `koanf:"uuid" yaml:"uuid,omitempty"`
	Label       string `koanf:"label" yaml:"label,omitempty"`
	AccessToken string `koanf:"access_token" yaml:"access_token"`
	BaseURL     string `koanf:"base_url" yaml:"base_url,omitempty"`
	Disabled    bool   `koanf:"disabled" yaml:"disabled,omitempty"`
}

// RoutingConfig drives model-to-provider selection.
type RoutingConfig struct {
	Default    string              `koanf:"default" yaml:"default"`
	Rules      []router.Rule       `koanf:"rules" yaml:"rules,omitempty"`
	Exclusions map[string][]string `koanf:"exclusions" yaml:"exclusions,omitempty"`
	Aliases    map[string]string   `koanf:"aliases" yaml:"aliases,omitempty"`
}

// HealthConfig controls the background credential probes.
type HealthConfig struct {
	Enabled  bool   `koanf:"enabled" yaml:"enabled"`
	Interval string `koanf:"interval" yaml:"interval,omitempty"`
	Path     string `koanf:"path" yaml:"path,omitempty"`
}

type Config struct {
	Host      string                 `koanf:"host" yaml:"host,omitempty"`
	Port      int                    `koanf:"port" yaml:"port,omitempty"`
	APIKey    string                 `koanf:"api_key" yaml:"api_key,omitempty"`
	Providers []Provider             `koanf:"providers" yaml:"providers"`
	Routing   RoutingConfig          `koanf:"routing" yaml:"routing"`
	Injection []injection.Rule       `koanf:"injection" yaml:"injection,omitempty"`
	Retry     resilience.RetryConfig `koanf:"retry" yaml:"retry,omitempty"`
	Health    HealthConfig           `koanf:"health" yaml:"health,omitempty"`
}

// Manager loads configuration and hands out immutable snapshots.
type Manager struct {
	configPath  string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		configPath: filepath.Join(baseDir, DefaultConfigFilename),
	}
}

// Load reads the YAML file, overlays GATEWAY_ environment variables, and
// stores the result. GATEWAY_API_KEY maps to api_key, GATEWAY_ROUTING__DEFAULT
// to routing.default, double underscore being the nesting separator.
func (m *Manager) Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(m.configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	m.configValue.Store(&cfg)
	return &cfg, nil
}

// Get returns the current snapshot, loading on first use. A failed initial
// load yields bare defaults so the CLI can still start and report.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		fallback := &Config{}
		applyDefaults(fallback)
		return fallback
	}
	return cfg
}

// Save writes the config as YAML and makes it the current snapshot.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.configValue.Store(cfg)
	return nil
}

func (m *Manager) GetPath() string {
	return m.configPath
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.Retry.RetryableCodes == nil {
		cfg.Retry.RetryableCodes = resilience.DefaultRetryableCodes
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].Strategy == "" {
			cfg.Providers[i].Strategy = string(credential.StrategyRoundRobin)
		}
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
	}

	if cfg.Routing.Default != "" && !seen[cfg.Routing.Default] {
		return fmt.Errorf("routing default %q is not a configured provider", cfg.Routing.Default)
	}
	for _, rule := range cfg.Routing.Rules {
		if rule.TargetProvider != "" && !seen[rule.TargetProvider] {
			return fmt.Errorf("routing rule %q targets unknown provider %q", rule.Pattern, rule.TargetProvider)
		}
	}
	return nil
}
