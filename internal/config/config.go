// Package config loads the analyzer configuration: built-in defaults, an
// optional YAML file layered on top, then environment overrides. Command-line
// flags are applied last by the caller.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// minDateLayout is the accepted format of the min_date setting.
const minDateLayout = "2006-01-02"

// Config is the full analyzer configuration.
type Config struct {
	// RPCEndpoint is the Solana JSON-RPC endpoint.
	RPCEndpoint string `yaml:"rpc_endpoint"`

	// MinDate, when set (YYYY-MM-DD), stops the transaction stream at the
	// first transaction older than it.
	MinDate string `yaml:"min_date"`

	// DatabaseURL enables Postgres persistence when non-empty.
	DatabaseURL string `yaml:"database_url"`

	// MetricsAddr exposes /metrics on this address when non-empty.
	MetricsAddr string `yaml:"metrics_addr"`

	Meteora MeteoraConfig `yaml:"meteora"`
	Limits  LimitsConfig  `yaml:"limits"`
	Output  OutputConfig  `yaml:"output"`
}

// MeteoraConfig configures the Meteora index API client.
type MeteoraConfig struct {
	BaseURL      string  `yaml:"base_url"`
	TokenListURL string  `yaml:"token_list_url"`
	PriceURL     string  `yaml:"price_url"`
	RateLimit    float64 `yaml:"rate_limit"` // requests per second
}

// LimitsConfig configures the RPC access layer budgets.
type LimitsConfig struct {
	SignatureRPS   int    `yaml:"signature_rps"`
	TransactionRPS int    `yaml:"transaction_rps"`
	AccountRPS     int    `yaml:"account_rps"`
	StateRPS       int    `yaml:"state_rps"`
	MaxRetries     uint64 `yaml:"max_retries"`
}

// OutputConfig configures report export.
type OutputConfig struct {
	// Dir receives the CSV and markdown exports.
	Dir string `yaml:"dir"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		RPCEndpoint: "https://api.mainnet-beta.solana.com",
		Meteora: MeteoraConfig{
			RateLimit: 10,
		},
		Limits: LimitsConfig{
			SignatureRPS:   4,
			TransactionRPS: 8,
			AccountRPS:     8,
			StateRPS:       4,
			MaxRetries:     4,
		},
		Output: OutputConfig{
			Dir: "out",
		},
	}
}

// Load reads a YAML configuration file at path (skipped when path is empty),
// merges it on top of the built-in defaults, applies DLMM_* environment
// variable overrides, and returns the final Config.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from well-known DLMM_* variables
// when set. Operators inject endpoints and credentials at deploy time without
// touching the YAML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.RPCEndpoint, "DLMM_RPC_ENDPOINT")
	setStr(&cfg.MinDate, "DLMM_MIN_DATE")
	setStr(&cfg.DatabaseURL, "DLMM_DATABASE_URL")
	setStr(&cfg.MetricsAddr, "DLMM_METRICS_ADDR")
	setStr(&cfg.Meteora.BaseURL, "DLMM_METEORA_BASE_URL")
	setStr(&cfg.Meteora.TokenListURL, "DLMM_METEORA_TOKEN_LIST_URL")
	setStr(&cfg.Meteora.PriceURL, "DLMM_METEORA_PRICE_URL")
	setUint(&cfg.Limits.MaxRetries, "DLMM_MAX_RETRIES")
	setStr(&cfg.Output.Dir, "DLMM_OUTPUT_DIR")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setUint(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

// Validate checks settings that would otherwise fail deep inside the
// pipeline.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc_endpoint must not be empty")
	}
	if c.MinDate != "" {
		if _, err := time.Parse(minDateLayout, c.MinDate); err != nil {
			return fmt.Errorf("min_date must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Meteora.RateLimit <= 0 {
		return fmt.Errorf("meteora rate_limit must be positive")
	}
	for name, v := range map[string]int{
		"signature_rps":   c.Limits.SignatureRPS,
		"transaction_rps": c.Limits.TransactionRPS,
		"account_rps":     c.Limits.AccountRPS,
		"state_rps":       c.Limits.StateRPS,
	} {
		if v <= 0 {
			return fmt.Errorf("limits %s must be positive", name)
		}
	}
	return nil
}

// MinDateTime parses the MinDate setting. Returns a zero time when unset.
func (c *Config) MinDateTime() (time.Time, error) {
	if c.MinDate == "" {
		return time.Time{}, nil
	}
	return time.Parse(minDateLayout, c.MinDate)
}
