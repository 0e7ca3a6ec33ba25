// ABOUTME: Configuration loading and parsing for chat-data
// ABOUTME: Supports YAML or TOML files with ${VAR} expansion, CHAT_* env overrides, and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/2389/chat-data/internal/consistency"
)

// EnvPrefix prefixes every environment override, e.g. CHAT_STORE_DRIVER.
const EnvPrefix = "CHAT_"

// Store drivers
const (
	StoreCassandra = "cassandra"
	StoreSQLite    = "sqlite"
	StoreSQLite3   = "sqlite3"
)

// Bus drivers
const (
	BusAMQP   = "amqp"
	BusMemory = "memory"
)

// Config represents the complete chat-data configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server" envPrefix:"SERVER_"`
	Tailscale   TailscaleConfig   `yaml:"tailscale" toml:"tailscale" envPrefix:"TAILSCALE_"`
	Store       StoreConfig       `yaml:"store" toml:"store" envPrefix:"STORE_"`
	Bus         BusConfig         `yaml:"bus" toml:"bus" envPrefix:"BUS_"`
	IDs         IDsConfig         `yaml:"ids" toml:"ids" envPrefix:"IDS_"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth" envPrefix:"AUTH_"`
	Secrets     SecretsConfig     `yaml:"secrets" toml:"secrets" envPrefix:"SECRETS_"`
	Consistency ConsistencyConfig `yaml:"consistency" toml:"consistency" envPrefix:"CONSISTENCY_"`
	History     HistoryConfig     `yaml:"history" toml:"history" envPrefix:"HISTORY_"`
	Cache       CacheConfig       `yaml:"cache" toml:"cache" envPrefix:"CACHE_"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging" envPrefix:"LOGGING_"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr" env:"GRPC_ADDR"`
	HTTPAddr string `yaml:"http_addr" toml:"http_addr" env:"HTTP_ADDR"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" env:"ENABLED"`
	Hostname  string `yaml:"hostname" toml:"hostname" env:"HOSTNAME"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key" env:"AUTH_KEY"`
	StateDir  string `yaml:"state_dir" toml:"state_dir" env:"STATE_DIR"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral" env:"EPHEMERAL"`
}

// StoreConfig selects and configures the row store
type StoreConfig struct {
	Driver            string   `yaml:"driver" toml:"driver" env:"DRIVER"`
	Hosts             []string `yaml:"hosts" toml:"hosts" env:"HOSTS"`
	ReplicationFactor int      `yaml:"replication_factor" toml:"replication_factor" env:"REPLICATION_FACTOR"`
	Path              string   `yaml:"path" toml:"path" env:"PATH"`
	Bootstrap         bool     `yaml:"bootstrap" toml:"bootstrap" env:"BOOTSTRAP"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`
}

// BusConfig selects and configures the fan-out bus
type BusConfig struct {
	Driver   string `yaml:"driver" toml:"driver" env:"DRIVER"`
	URL      string `yaml:"url" toml:"url" env:"URL"`
	Exchange string `yaml:"exchange" toml:"exchange" env:"EXCHANGE"`
}

// IDsConfig configures identifier allocation
type IDsConfig struct {
	// MaxAttempts caps conditional insert retries per entity; 0 is unbounded.
	MaxAttempts int `yaml:"max_attempts" toml:"max_attempts" env:"MAX_ATTEMPTS"`

	Epoch    time.Time `yaml:"-" toml:"-"`
	EpochRaw string    `yaml:"epoch" toml:"epoch" env:"EPOCH"`
}

// AuthConfig holds password hashing and token configuration
type AuthConfig struct {
	BcryptCost int `yaml:"bcrypt_cost" toml:"bcrypt_cost" env:"BCRYPT_COST"`

	TokenTTL    time.Duration `yaml:"-" toml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl" toml:"token_ttl" env:"TOKEN_TTL"`
}

// SecretsConfig configures generated shared values
type SecretsConfig struct {
	Length int `yaml:"length" toml:"length" env:"LENGTH"`
}

// ConsistencyConfig overrides per-operation consistency levels
type ConsistencyConfig struct {
	Overrides map[string]string `yaml:"overrides" toml:"overrides" env:"OVERRIDES"`
}

// HistoryConfig bounds history page sizes
type HistoryConfig struct {
	DefaultLimit int `yaml:"default_limit" toml:"default_limit" env:"DEFAULT_LIMIT"`
	MaxLimit     int `yaml:"max_limit" toml:"max_limit" env:"MAX_LIMIT"`
}

// CacheConfig configures the account view cache
type CacheConfig struct {
	AccountMaxEntries int `yaml:"account_max_entries" toml:"account_max_entries" env:"ACCOUNT_MAX_ENTRIES"`

	// AccountTTL of zero disables the cache.
	AccountTTL    time.Duration `yaml:"-" toml:"-"`
	AccountTTLRaw string        `yaml:"account_ttl" toml:"account_ttl" env:"ACCOUNT_TTL"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LEVEL"`
	Format string `yaml:"format" toml:"format" env:"FORMAT"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, then CHAT_*
// variables override individual fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(&cfg)
}

// FromEnv builds a Config from defaults and CHAT_* variables alone.
func FromEnv() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	applyDefaults(cfg)

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreCassandra
	}
	if cfg.Store.ReplicationFactor == 0 {
		cfg.Store.ReplicationFactor = 1
	}
	if cfg.Store.TimeoutRaw == "" {
		cfg.Store.TimeoutRaw = "5s"
	}
	if cfg.Bus.Driver == "" {
		cfg.Bus.Driver = BusAMQP
	}
	if cfg.Bus.Exchange == "" {
		cfg.Bus.Exchange = "channel-messages"
	}
	if cfg.IDs.EpochRaw == "" {
		cfg.IDs.EpochRaw = "2024-01-01T00:00:00Z"
	}
	if cfg.Auth.TokenTTLRaw == "" {
		cfg.Auth.TokenTTLRaw = "24h"
	}
	if cfg.Secrets.Length == 0 {
		cfg.Secrets.Length = 32
	}
	if cfg.History.DefaultLimit == 0 {
		cfg.History.DefaultLimit = 50
	}
	if cfg.History.MaxLimit == 0 {
		cfg.History.MaxLimit = 100
	}
	if cfg.Cache.AccountMaxEntries == 0 {
		cfg.Cache.AccountMaxEntries = 10000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server addresses are required unless Tailscale is enabled
	if !c.Tailscale.Enabled {
		if c.Server.GRPCAddr == "" {
			return errors.New("server.grpc_addr is required (or enable tailscale)")
		}
		if c.Server.HTTPAddr == "" {
			return errors.New("server.http_addr is required (or enable tailscale)")
		}
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Store.Driver {
	case StoreCassandra:
		if len(c.Store.Hosts) == 0 {
			return errors.New("store.hosts is required for the cassandra driver")
		}
		if c.Store.ReplicationFactor < 1 {
			return errors.New("store.replication_factor must be at least 1")
		}
	case StoreSQLite, StoreSQLite3:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver %q is not one of cassandra, sqlite, sqlite3", c.Store.Driver)
	}

	switch c.Bus.Driver {
	case BusAMQP:
		if c.Bus.URL == "" {
			return errors.New("bus.url is required for the amqp driver")
		}
	case BusMemory:
	default:
		return fmt.Errorf("bus.driver %q is not one of amqp, memory", c.Bus.Driver)
	}

	if c.IDs.MaxAttempts < 0 {
		return errors.New("ids.max_attempts must not be negative")
	}
	if c.Secrets.Length < 16 {
		return errors.New("secrets.length must be at least 16")
	}
	if c.History.DefaultLimit < 1 || c.History.MaxLimit < 1 {
		return errors.New("history limits must be positive")
	}
	if c.History.DefaultLimit > c.History.MaxLimit {
		return errors.New("history.default_limit must not exceed history.max_limit")
	}
	if c.Cache.AccountMaxEntries < 0 {
		return errors.New("cache.account_max_entries must not be negative")
	}

	if _, err := consistency.NewPolicy(c.Consistency.Overrides); err != nil {
		return fmt.Errorf("consistency.overrides: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// parseDurations converts the raw duration and time strings into typed values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Store.TimeoutRaw != "" {
		cfg.Store.Timeout, err = time.ParseDuration(cfg.Store.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing store.timeout %q: %w", cfg.Store.TimeoutRaw, err)
		}
	}

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing auth.token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.Cache.AccountTTLRaw != "" {
		cfg.Cache.AccountTTL, err = time.ParseDuration(cfg.Cache.AccountTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.account_ttl %q: %w", cfg.Cache.AccountTTLRaw, err)
		}
	}

	if cfg.IDs.EpochRaw != "" {
		cfg.IDs.Epoch, err = time.Parse(time.RFC3339, cfg.IDs.EpochRaw)
		if err != nil {
			return fmt.Errorf("parsing ids.epoch %q: %w", cfg.IDs.EpochRaw, err)
		}
	}

	return nil
}
