package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
environment: development
client:
  timeout: 20s
  max_retries: 5
  retry_delay: 2s
rate_limit:
  initial_rate: 15
  max_rate: 80
pool:
  max_endpoints: 3
  max_test: 10
nats:
  url: "nats://localhost:4222"
  subject_prefix: "solgate.blocks"
endpoints:
  static:
    - url: "https://api.mainnet-beta.solana.com"
      name: "solana-mainnet"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 20*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 5, cfg.Client.MaxRetries)
	assert.Equal(t, 15.0, cfg.RateLimit.InitialRate)
	assert.Equal(t, 3, cfg.Pool.MaxEndpoints)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	require.Len(t, cfg.Endpoints.Static, 1)
	assert.Equal(t, "solana-mainnet", cfg.Endpoints.Static[0].Name)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
endpoints:
  static:
    - url: "https://api.mainnet-beta.solana.com"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 3, cfg.Client.MaxRetries)
	assert.Equal(t, 5, cfg.Pool.MaxEndpoints)
	assert.Equal(t, 15*time.Second, cfg.Cache.StatusTTL)
	assert.Equal(t, 120*time.Second, cfg.Cache.NodesTTL)
}

func TestLoadRejectsBadEnvironment(t *testing.T) {
	path := writeConfig(t, `
environment: staging
endpoints:
  static:
    - url: "https://api.mainnet-beta.solana.com"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestAPIKeySubstitution(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "k3y")

	path := writeConfig(t, `
environment: development
endpoints:
  static:
    - url: "https://rpc.example.com/${API_KEY}"
      api_key_env: "TEST_PROVIDER_KEY"
providers:
  - name: "helius"
    url: "https://rpc.helius.xyz/?api-key=${API_KEY}"
    api_key_env: "TEST_PROVIDER_KEY"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com/k3y", cfg.Endpoints.Static[0].URL)
	assert.Equal(t, "k3y", cfg.Endpoints.Static[0].ApiKey)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "https://rpc.helius.xyz/?api-key=k3y", cfg.Providers[0].URL)
}

func TestEnvVarSubstitutionInHeaders(t *testing.T) {
	t.Setenv("TEST_HEADER_TOKEN", "tok123")

	path := writeConfig(t, `
environment: development
endpoints:
  static:
    - url: "https://rpc.example.com"
      headers:
        X-Token: "${TEST_HEADER_TOKEN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok123", cfg.Endpoints.Static[0].Headers["X-Token"])
}

func TestQueryParamsAttachedToURL(t *testing.T) {
	path := writeConfig(t, `
environment: development
endpoints:
  static:
    - url: "https://rpc.example.com"
      query:
        api-key: "abc"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.com?api-key=abc", cfg.Endpoints.Static[0].URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
