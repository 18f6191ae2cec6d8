package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
host: 0.0.0.0
port: 9100
api_key: secret

providers:
  - name: kiro
    kind: kiro
    profile_arn: arn:aws:profile/test
    strategy: least_used
    credentials:
      - uuid: cred-1
        access_token: tok-1
      - uuid: cred-2
        access_token: tok-2
        disabled: true
  - name: openrouter
    kind: openai
    base_url: https://openrouter.ai/api/v1
    credentials:
      - access_token: tok-3

routing:
  default: openrouter
  rules:
    - pattern: "claude-*"
      target_provider: kiro
      priority: 10
      enabled: true
  exclusions:
    kiro: ["claude-3-5-haiku*"]
  aliases:
    sonnet: claude-sonnet-4-5

injection:
  - id: low-temp
    pattern: "gpt-*"
    params:
      temperature: 0.2
    enabled: true
    mode: merge

retry:
  max_retries: 5
  base_delay: 2s
  max_delay: 20s
`

func writeConfig(t *testing.T, content string) *Manager {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFilename), []byte(content), 0o600))
	return NewManager(dir)
}

func TestLoadFullConfig(t *testing.T) {
	m := writeConfig(t, sampleConfig)

	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "secret", cfg.APIKey)

	require.Len(t, cfg.Providers, 2)
	kiro := cfg.Providers[0]
	assert.Equal(t, "kiro", kiro.Kind)
	assert.Equal(t, "least_used", kiro.Strategy)
	assert.Equal(t, "arn:aws:profile/test", kiro.ProfileARN)
	require.Len(t, kiro.Credentials, 2)
	assert.True(t, kiro.Credentials[1].Disabled)
	assert.Equal(t, "round_robin", cfg.Providers[1].Strategy, "strategy default applied")

	assert.Equal(t, "openrouter", cfg.Routing.Default)
	require.Len(t, cfg.Routing.Rules, 1)
	assert.Equal(t, "claude-*", cfg.Routing.Rules[0].Pattern)
	assert.Equal(t, "kiro", cfg.Routing.Rules[0].TargetProvider)
	assert.Equal(t, []string{"claude-3-5-haiku*"}, cfg.Routing.Exclusions["kiro"])
	assert.Equal(t, "claude-sonnet-4-5", cfg.Routing.Aliases["sonnet"])

	require.Len(t, cfg.Injection, 1)
	assert.Equal(t, 0.2, cfg.Injection[0].Params["temperature"])

	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.NotEmpty(t, cfg.Retry.RetryableCodes)
}

func TestLoadDefaults(t *testing.T) {
	m := writeConfig(t, `
providers:
  - name: p
    kind: openai
    credentials: []
routing:
  default: p
`)

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "7777")
	t.Setenv("GATEWAY_API_KEY", "env-secret")
	t.Setenv("GATEWAY_ROUTING__DEFAULT", "p")

	m := writeConfig(t, `
port: 9100
providers:
  - name: p
    kind: openai
    credentials: []
routing:
  default: p
`)

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Port)
	assert.Equal(t, "env-secret", cfg.APIKey)
	assert.Equal(t, "p", cfg.Routing.Default)
}

func TestLoadMissingFile(t *testing.T) {
	m := NewManager(t.TempDir())
	_, err := m.Load()
	assert.Error(t, err)
	assert.False(t, m.Exists())
}

func TestValidateUnknownRoutingTarget(t *testing.T) {
	m := writeConfig(t, `
providers:
  - name: p
    kind: openai
    credentials: []
routing:
  default: nope
`)
	_, err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a configured provider")
}

func TestValidateDuplicateProvider(t *testing.T) {
	m := writeConfig(t, `
providers:
  - name: p
    kind: openai
    credentials: []
  - name: p
    kind: anthropic
    credentials: []
`)
	_, err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate provider")
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	cfg := &Config{
		Host:   "127.0.0.1",
		Port:   8123,
		APIKey: "k",
		Providers: []Provider{
			{Name: "p", Kind: "openai", Credentials: []CredentialSpec{{AccessToken: "t"}}},
		},
		Routing: RoutingConfig{Default: "p"},
	}
	require.NoError(t, m.Save(cfg))
	assert.True(t, m.Exists())

	loaded, err := NewManager(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, 8123, loaded.Port)
	assert.Equal(t, "p", loaded.Routing.Default)
	require.Len(t, loaded.Providers, 1)
	assert.Equal(t, "t", loaded.Providers[0].Credentials[0].AccessToken)
}

func TestGetFallsBackToDefaults(t *testing.T) {
	m := NewManager(t.TempDir())
	cfg := m.Get()
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
}
