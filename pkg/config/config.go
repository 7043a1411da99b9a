// Package config loads blockscout-mcp settings from defaults, an optional
// YAML file and BLOCKSCOUT_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Mode selects which surfaces the server exposes
type Mode string

const (
	ModeStdio Mode = "stdio"
	ModeHTTP  Mode = "http"
)

// Config is the complete server configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Blockscout    BlockscoutConfig    `yaml:"blockscout"`
	Pagination    PaginationConfig    `yaml:"pagination"`
	Cache         CacheConfig         `yaml:"cache"`
	RPC           RPCConfig           `yaml:"rpc"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig controls the MCP and REST listeners
type ServerConfig struct {
	Mode           Mode          `yaml:"mode"            validate:"oneof=stdio http"`
	Addr           string        `yaml:"addr"            validate:"required"`
	EnableREST     bool          `yaml:"enable_rest"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	SessionTimeout time.Duration `yaml:"session_timeout" validate:"min=0"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// BlockscoutConfig holds upstream endpoints and client behaviour
type BlockscoutConfig struct {
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"            validate:"gt=0"`
	ChainscoutURL     string        `yaml:"chainscout_url"     validate:"required,url"`
	ChainscoutTimeout time.Duration `yaml:"chainscout_timeout" validate:"gt=0"`
	BENSURL           string        `yaml:"bens_url"           validate:"required,url"`
	BENSTimeout       time.Duration `yaml:"bens_timeout"       validate:"gt=0"`
	MetadataURL       string        `yaml:"metadata_url"       validate:"required,url"`
	MetadataTimeout   time.Duration `yaml:"metadata_timeout"   validate:"gt=0"`
	UserAgent         string        `yaml:"user_agent"`
	MaxRetries        int           `yaml:"max_retries"        validate:"min=0"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	RateLimit         RateLimit     `yaml:"rate_limit"`
}

// RateLimit throttles outbound requests; zero RequestsPerSecond disables it
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst"               validate:"min=0"`
}

// PaginationConfig holds page sizes and progress settings
type PaginationConfig struct {
	LogsPageSize            int           `yaml:"logs_page_size"             validate:"min=1"`
	NFTPageSize             int           `yaml:"nft_page_size"              validate:"min=1"`
	AdvancedFiltersPageSize int           `yaml:"advanced_filters_page_size" validate:"min=1"`
	MaxAdaptivePages        int           `yaml:"max_adaptive_pages"         validate:"min=1"`
	ProgressInterval        time.Duration `yaml:"progress_interval"          validate:"gt=0"`
	ResponseSizeLimit       int           `yaml:"response_size_limit"        validate:"min=1"`
}

// CacheConfig sizes the in-memory caches
type CacheConfig struct {
	ChainTTL         time.Duration `yaml:"chain_ttl"          validate:"gt=0"`
	ContractsMaxSize int           `yaml:"contracts_max_size" validate:"min=1"`
	ContractsTTL     time.Duration `yaml:"contracts_ttl"      validate:"gt=0"`
}

// RPCConfig controls the JSON-RPC clients used by read_contract
type RPCConfig struct {
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// ObservabilityConfig controls metrics and tracing
type ObservabilityConfig struct {
	MetricsEnabled   bool    `yaml:"metrics_enabled"`
	MetricsNamespace string  `yaml:"metrics_namespace"`
	TracingExporter  string  `yaml:"tracing_exporter" validate:"omitempty,oneof=noop otlp-grpc otlp-http"`
	TracingEndpoint  string  `yaml:"tracing_endpoint"`
	TracingInsecure  bool    `yaml:"tracing_insecure"`
	SampleRate       float64 `yaml:"sample_rate"      validate:"min=0,max=1"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Mode:           ModeStdio,
			Addr:           "0.0.0.0:8000",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Minute,
			SessionTimeout: 30 * time.Minute,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Blockscout: BlockscoutConfig{
			Timeout:           120 * time.Second,
			ChainscoutURL:     "https://chains.blockscout.com",
			ChainscoutTimeout: 15 * time.Second,
			BENSURL:           "https://bens.services.blockscout.com",
			BENSTimeout:       30 * time.Second,
			MetadataURL:       "https://metadata.services.blockscout.com",
			MetadataTimeout:   30 * time.Second,
			UserAgent:         "blockscout-mcp-go",
			MaxRetries:        3,
			RetryInterval:     500 * time.Millisecond,
			RateLimit: RateLimit{
				RequestsPerSecond: 20,
				Burst:             40,
			},
		},
		Pagination: PaginationConfig{
			LogsPageSize:            10,
			NFTPageSize:             10,
			AdvancedFiltersPageSize: 10,
			MaxAdaptivePages:        10,
			ProgressInterval:        15 * time.Second,
			ResponseSizeLimit:       100000,
		},
		Cache: CacheConfig{
			ChainTTL:         30 * time.Minute,
			ContractsMaxSize: 10,
			ContractsTTL:     time.Hour,
		},
		RPC: RPCConfig{
			Timeout: 60 * time.Second,
		},
		Observability: ObservabilityConfig{
			MetricsEnabled:   true,
			MetricsNamespace: "blockscout_mcp",
			TracingExporter:  "noop",
			SampleRate:       1.0,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
