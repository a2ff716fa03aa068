// Package config loads BYOKEY's YAML configuration and publishes it as
// an immutable snapshot behind an atomic pointer: readers never block,
// writers swap a whole new
// snapshot, in-flight requests finish against the snapshot they started with.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderConfig is the per-provider block under `providers:` in §6.
type ProviderConfig struct {
	Enabled        *bool             `yaml:"enabled" json:"enabled" validate:"-"`
	APIKey         string            `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Backend        string            `yaml:"backend,omitempty" json:"backend,omitempty"`
	Fallback       string            `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	ModelAliases   map[string]string `yaml:"model_aliases,omitempty" json:"model_aliases,omitempty"`
	ModelExclusion []string          `yaml:"model_exclusions,omitempty" json:"model_exclusions,omitempty"`
	PayloadRules   PayloadRules      `yaml:"payload_rules,omitempty" json:"payload_rules,omitempty"`
	MultiAccount   bool              `yaml:"multi_account,omitempty" json:"multi_account,omitempty"`
}

// IsEnabled returns true unless explicitly disabled (default is enabled, per §6).
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// PayloadRules describes the strip/set payload rules a provider's executor applies (§4.4).
type PayloadRules struct {
	Strip []string       `yaml:"strip,omitempty" json:"strip,omitempty"`
	Set   map[string]any `yaml:"set,omitempty" json:"set,omitempty"`
}

// AmpConfig configures the /amp/* surface (§6).
type AmpConfig struct {
	UpstreamKey  string `yaml:"upstream_key,omitempty" json:"upstream_key,omitempty"`
	HideFreeTier bool   `yaml:"hide_free_tier,omitempty" json:"hide_free_tier,omitempty"`
}

// StreamingConfig configures SSE idle timeout behavior (§5).
type StreamingConfig struct {
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds,omitempty" json:"idle_timeout_seconds,omitempty" validate:"gte=0"`
}

// TLSConfig selects a client-hello fingerprint for the outbound HTTPClient (§9).
type TLSConfig struct {
	Impersonate string `yaml:"impersonate,omitempty" json:"impersonate,omitempty"`
}

// StoreConfig selects and configures the TokenStore backend.
type StoreConfig struct {
	Backend    string `yaml:"backend,omitempty" json:"backend,omitempty" validate:"omitempty,oneof=file postgres memory"`
	Path       string `yaml:"path,omitempty" json:"path,omitempty"`
	DSN        string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	BackupS3   S3Backup `yaml:"backup_s3,omitempty" json:"backup_s3,omitempty"`
}

// S3Backup configures the optional encrypted minio backup of tokens.db.
type S3Backup struct {
	Enabled   bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	AccessKey string `yaml:"access_key,omitempty" json:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty" json:"secret_key,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty" json:"use_ssl,omitempty"`
}

// LoggingConfig configures the logging package.
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" json:"level,omitempty"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty"`
	RequestLog bool   `yaml:"request_log,omitempty" json:"request_log,omitempty"`
}

// Config is the root of BYOKEY's YAML/JSON configuration, matching §6.
type Config struct {
	Host      string                    `yaml:"host" json:"host" validate:"required"`
	Port      int                       `yaml:"port" json:"port" validate:"required,gt=0,lt=65536"`
	ProxyURL  string                    `yaml:"proxy_url,omitempty" json:"proxy_url,omitempty"`
	Providers map[string]ProviderConfig `yaml:"providers" json:"providers"`
	Amp       AmpConfig                 `yaml:"amp,omitempty" json:"amp,omitempty"`
	Streaming StreamingConfig           `yaml:"streaming,omitempty" json:"streaming,omitempty"`
	TLS       TLSConfig                 `yaml:"tls,omitempty" json:"tls,omitempty"`
	Store     StoreConfig               `yaml:"store,omitempty" json:"store,omitempty"`
	Logging   LoggingConfig             `yaml:"logging,omitempty" json:"logging,omitempty"`
}

var validate = validator.New()

// DefaultConfig returns the zero-value-safe defaults applied before YAML parsing.
func DefaultConfig() *Config {
	return &Config{
		Host: "127.0.0.1",
		Port: 8018,
		Streaming: StreamingConfig{
			IdleTimeoutSeconds: 180,
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    "~/.byokey/tokens.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a .env file (if present) then the YAML config at path, applying
// defaults first so partial configs remain valid.
func Load(path string) (*Config, error) {
	if envPath := strings.TrimSpace(os.Getenv("BYOKEY_ENV_FILE")); envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, Validate(cfg)
			}
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	expandAPIKeys(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandAPIKeys resolves `${ENV_VAR}`-shaped api_key values against the environment,
// so secrets can live outside the YAML file.
func expandAPIKeys(cfg *Config) {
	for id, p := range cfg.Providers {
		if strings.HasPrefix(p.APIKey, "${") && strings.HasSuffix(p.APIKey, "}") {
			envName := strings.TrimSuffix(strings.TrimPrefix(p.APIKey, "${"), "}")
			p.APIKey = os.Getenv(envName)
			cfg.Providers[id] = p
		}
	}
}

// Validate runs struct-tag validation (go-playground/validator) plus cross-field
// checks not expressible as tags. A failing validation must never be published
// as the live snapshot.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	for id := range cfg.Providers {
		if !knownProviderIDs[id] {
			return fmt.Errorf("config: unknown provider id %q", id)
		}
	}
	if cfg.Streaming.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("config: streaming.idle_timeout_seconds must be >= 0")
	}
	return nil
}

// knownProviderIDs mirrors store.AllProviderIDs without importing the store
// package, avoiding an import cycle (internal/store imports config).
var knownProviderIDs = map[string]bool{
	"claude": true, "codex": true, "copilot": true, "gemini": true, "kiro": true,
	"antigravity": true, "qwen": true, "kimi": true, "iflow": true,
}

// ProxyEnabledFor reports whether the global ProxyURL applies to the named outbound service.
func (c *Config) ProxyEnabledFor(service string) bool {
	if c == nil || strings.TrimSpace(c.ProxyURL) == "" {
		return false
	}
	return true
}
