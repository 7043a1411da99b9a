package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeStdio, cfg.Server.Mode)
	assert.Equal(t, 10, cfg.Pagination.MaxAdaptivePages)
	assert.Equal(t, 100000, cfg.Pagination.ResponseSizeLimit)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  mode: http
  addr: 127.0.0.1:9000
  enable_rest: true
pagination:
  logs_page_size: 25
  progress_interval: 5s
cache:
  chain_ttl: 10m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeHTTP, cfg.Server.Mode)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.Server.EnableREST)
	assert.Equal(t, 25, cfg.Pagination.LogsPageSize)
	assert.Equal(t, 5*time.Second, cfg.Pagination.ProgressInterval)
	assert.Equal(t, 10*time.Minute, cfg.Cache.ChainTTL)
	// untouched keys keep defaults
	assert.Equal(t, 10, cfg.Pagination.NFTPageSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BLOCKSCOUT_MODE":                           "HTTP",
		"BLOCKSCOUT_BS_TIMEOUT":                     "90",
		"BLOCKSCOUT_PROGRESS_INTERVAL_SECONDS":      "2.5",
		"BLOCKSCOUT_CONTRACTS_CACHE_TTL_SECONDS":    "15m",
		"BLOCKSCOUT_DIRECT_API_RESPONSE_SIZE_LIMIT": "5000",
		"BLOCKSCOUT_ALLOWED_ORIGINS":                "https://a.example, https://b.example",
		"BLOCKSCOUT_METRICS_ENABLED":                "false",
		"BLOCKSCOUT_LOG_LEVEL":                      "  ",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, applyEnv(cfg, lookup))

	assert.Equal(t, ModeHTTP, cfg.Server.Mode)
	assert.Equal(t, 90*time.Second, cfg.Blockscout.Timeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.Pagination.ProgressInterval)
	assert.Equal(t, 15*time.Minute, cfg.Cache.ContractsTTL)
	assert.Equal(t, 5000, cfg.Pagination.ResponseSizeLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "BLOCKSCOUT_LOGS_PAGE_SIZE" {
			return "ten", true
		}
		return "", false
	}
	err := applyEnv(Default(), lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BLOCKSCOUT_LOGS_PAGE_SIZE")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Pagination.LogsPageSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.Mode = "grpc"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Blockscout.ChainscoutURL = "not a url"
	assert.Error(t, cfg.Validate())
}
