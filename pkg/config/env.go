package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "BLOCKSCOUT_"

type lookupFunc func(key string) (string, bool)

type envBinding struct {
	key   string
	apply func(cfg *Config, raw string) error
}

func stringVar(get func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		*get(cfg) = raw
		return nil
	}
}

func intVar(get func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*get(cfg) = v
		return nil
	}
}

func floatVar(get func(*Config) *float64) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*get(cfg) = v
		return nil
	}
}

func boolVar(get func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*get(cfg) = v
		return nil
	}
}

// secondsVar accepts either a Go duration ("90s") or a bare number of seconds
func secondsVar(get func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, raw string) error {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil {
			*get(cfg) = time.Duration(secs * float64(time.Second))
			return nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*get(cfg) = d
		return nil
	}
}

var envBindings = []envBinding{
	{"MODE", func(cfg *Config, raw string) error {
		cfg.Server.Mode = Mode(strings.ToLower(raw))
		return nil
	}},
	{"ADDR", stringVar(func(c *Config) *string { return &c.Server.Addr })},
	{"ENABLE_REST", boolVar(func(c *Config) *bool { return &c.Server.EnableREST })},
	{"SESSION_TIMEOUT", secondsVar(func(c *Config) *time.Duration { return &c.Server.SessionTimeout })},
	{"ALLOWED_ORIGINS", func(cfg *Config, raw string) error {
		cfg.Server.AllowedOrigins = splitList(raw)
		return nil
	}},
	{"LOG_LEVEL", stringVar(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", stringVar(func(c *Config) *string { return &c.Log.Format })},

	{"BS_API_KEY", stringVar(func(c *Config) *string { return &c.Blockscout.APIKey })},
	{"BS_TIMEOUT", secondsVar(func(c *Config) *time.Duration { return &c.Blockscout.Timeout })},
	{"CHAINSCOUT_URL", stringVar(func(c *Config) *string { return &c.Blockscout.ChainscoutURL })},
	{"CHAINSCOUT_TIMEOUT", secondsVar(func(c *Config) *time.Duration { return &c.Blockscout.ChainscoutTimeout })},
	{"BENS_URL", stringVar(func(c *Config) *string { return &c.Blockscout.BENSURL })},
	{"BENS_TIMEOUT", secondsVar(func(c *Config) *time.Duration { return &c.Blockscout.BENSTimeout })},
	{"METADATA_URL", stringVar(func(c *Config) *string { return &c.Blockscout.MetadataURL })},
	{"METADATA_TIMEOUT", secondsVar(func(c *Config) *time.Duration { return &c.Blockscout.MetadataTimeout })},
	{"MCP_USER_AGENT", stringVar(func(c *Config) *string { return &c.Blockscout.UserAgent })},
	{"MAX_RETRIES", intVar(func(c *Config) *int { return &c.Blockscout.MaxRetries })},
	{"RATE_LIMIT_RPS", floatVar(func(c *Config) *float64 { return &c.Blockscout.RateLimit.RequestsPerSecond })},
	{"RATE_LIMIT_BURST", intVar(func(c *Config) *int { return &c.Blockscout.RateLimit.Burst })},

	{"LOGS_PAGE_SIZE", intVar(func(c *Config) *int { return &c.Pagination.LogsPageSize })},
	{"NFT_PAGE_SIZE", intVar(func(c *Config) *int { return &c.Pagination.NFTPageSize })},
	{"ADVANCED_FILTERS_PAGE_SIZE", intVar(func(c *Config) *int { return &c.Pagination.AdvancedFiltersPageSize })},
	{"MAX_ADAPTIVE_PAGES", intVar(func(c *Config) *int { return &c.Pagination.MaxAdaptivePages })},
	{"PROGRESS_INTERVAL_SECONDS", secondsVar(func(c *Config) *time.Duration { return &c.Pagination.ProgressInterval })},
	{"DIRECT_API_RESPONSE_SIZE_LIMIT", intVar(func(c *Config) *int { return &c.Pagination.ResponseSizeLimit })},

	{"CHAIN_CACHE_TTL_SECONDS", secondsVar(func(c *Config) *time.Duration { return &c.Cache.ChainTTL })},
	{"CONTRACTS_CACHE_MAX_NUMBER", intVar(func(c *Config) *int { return &c.Cache.ContractsMaxSize })},
	{"CONTRACTS_CACHE_TTL_SECONDS", secondsVar(func(c *Config) *time.Duration { return &c.Cache.ContractsTTL })},

	{"RPC_REQUEST_TIMEOUT", secondsVar(func(c *Config) *time.Duration { return &c.RPC.Timeout })},

	{"METRICS_ENABLED", boolVar(func(c *Config) *bool { return &c.Observability.MetricsEnabled })},
	{"TRACING_EXPORTER", stringVar(func(c *Config) *string { return &c.Observability.TracingExporter })},
	{"TRACING_ENDPOINT", stringVar(func(c *Config) *string { return &c.Observability.TracingEndpoint })},
	{"TRACING_SAMPLE_RATE", floatVar(func(c *Config) *float64 { return &c.Observability.SampleRate })},
}

func applyEnv(cfg *Config, lookup lookupFunc) error {
	for _, b := range envBindings {
		raw, ok := lookup(EnvPrefix + b.key)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if err := b.apply(cfg, raw); err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, b.key, raw, err)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
