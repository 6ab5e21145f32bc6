package vaultd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for vaultd.
type Config struct {
	ListenAddress     string              `yaml:"listen"`
	GRPCListenAddress string              `yaml:"grpc_listen"`
	NodeConfigPath    string              `yaml:"node_config"`
	ShutdownTimeout   Duration            `yaml:"shutdown_timeout"`
	Auth              AuthConfig          `yaml:"auth"`
	RateLimit         RateLimitConfig     `yaml:"rate_limit"`
	Audit             AuditConfig         `yaml:"audit"`
	Observability     ObservabilityConfig `yaml:"observability"`
	Faucet            FaucetConfig        `yaml:"faucet"`
}

// AuthConfig configures bearer token verification. The token subject is the
// caller's account address.
type AuthConfig struct {
	HMACSecret    string   `yaml:"hmac_secret"`
	HMACSecretEnv string   `yaml:"hmac_secret_env"`
	Issuer        string   `yaml:"issuer"`
	Audience      string   `yaml:"audience"`
	ClockSkew     Duration `yaml:"clock_skew"`
}

// RateLimitConfig bounds mutations per caller.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// AuditConfig points at the Postgres audit journal. An empty DSN disables it.
type AuditConfig struct {
	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsn_env"`
}

// ObservabilityConfig controls logs and exporters.
type ObservabilityConfig struct {
	LogLevel     string  `yaml:"log_level"`
	LogFile      string  `yaml:"log_file"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	OTLPInsecure bool    `yaml:"otlp_insecure"`
	Traces       bool    `yaml:"traces"`
	Metrics      bool    `yaml:"metrics"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// FaucetConfig enables the development funding route.
type FaucetConfig struct {
	Enabled   bool   `yaml:"enabled"`
	MaxAmount uint64 `yaml:"max_amount"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, fmt.Errorf("auth: %w", err)
	}
	cfg.Audit.normalise()
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8480"
	}
	if cfg.GRPCListenAddress == "" {
		cfg.GRPCListenAddress = ":8481"
	}
	if cfg.NodeConfigPath == "" {
		cfg.NodeConfigPath = "vault.toml"
	}
	if cfg.ShutdownTimeout.Duration == 0 {
		cfg.ShutdownTimeout.Duration = 10 * time.Second
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Faucet.Enabled && cfg.Faucet.MaxAmount == 0 {
		cfg.Faucet.MaxAmount = 1_000_000
	}
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth hmac secret must be configured")
	}
	if len(cfg.Auth.HMACSecret) < 32 {
		return fmt.Errorf("auth hmac secret must be at least 32 bytes")
	}
	if cfg.Observability.SampleRatio < 0 || cfg.Observability.SampleRatio > 1 {
		return fmt.Errorf("observability sample_ratio must be within [0, 1]")
	}
	if cfg.ListenAddress == cfg.GRPCListenAddress {
		return fmt.Errorf("listen and grpc_listen must differ")
	}
	return nil
}

func (a *AuthConfig) normalise() error {
	a.HMACSecret = strings.TrimSpace(a.HMACSecret)
	a.HMACSecretEnv = strings.TrimSpace(a.HMACSecretEnv)
	a.Issuer = strings.TrimSpace(a.Issuer)
	a.Audience = strings.TrimSpace(a.Audience)
	if a.HMACSecret != "" || a.HMACSecretEnv == "" {
		return nil
	}
	value := strings.TrimSpace(os.Getenv(a.HMACSecretEnv))
	if value == "" {
		return fmt.Errorf("hmac_secret_env %s is empty", a.HMACSecretEnv)
	}
	a.HMACSecret = value
	return nil
}

func (a *AuditConfig) normalise() {
	a.DSN = strings.TrimSpace(a.DSN)
	if a.DSN == "" && strings.TrimSpace(a.DSNEnv) != "" {
		a.DSN = strings.TrimSpace(os.Getenv(strings.TrimSpace(a.DSNEnv)))
	}
}
