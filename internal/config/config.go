// Package config loads the daemon configuration: YAML file, then
// FOCUSLOCK_* environment overrides, then validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/focuslock/internal/policy"
)

const envPrefix = "FOCUSLOCK_"

// Store backends.
const (
	StoreSQLCipher = "sqlcipher"
	StoreRedis     = "redis"
)

// Event source kinds.
const (
	SourceADB   = "adb"
	SourceNATS  = "nats"
	SourceStdin = "stdin"
)

// Home action kinds.
const (
	ActionADB     = "adb"
	ActionProcess = "process"
	ActionLog     = "log"
)

// Config holds all configuration for the focuslock service.
type Config struct {
	// DataDir overrides the exec-mode data directory when set.
	DataDir   string `yaml:"data_dir"`
	LogLevel  string `yaml:"log_level"`
	SelfAppID string `yaml:"self_app_id"`

	Store   StoreConfig   `yaml:"store"`
	Source  SourceConfig  `yaml:"source"`
	ADB     ADBConfig     `yaml:"adb"`
	Action  ActionConfig  `yaml:"action"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// StoreConfig selects the prefs backend.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// SourceConfig selects where foreground events come from.
type SourceConfig struct {
	Kind         string        `yaml:"kind"`
	NatsURL      string        `yaml:"nats_url"`
	NatsSubject  string        `yaml:"nats_subject"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ADBConfig configures the adb binary.
type ADBConfig struct {
	Path    string        `yaml:"path"`
	Serial  string        `yaml:"serial"`
	Timeout time.Duration `yaml:"timeout"`
}

// ActionConfig selects how a kick is carried out.
type ActionConfig struct {
	Kind string `yaml:"kind"`
	// ProcessNames maps app identifiers to process name patterns for the
	// process action.
	ProcessNames map[string]string `yaml:"process_names"`
}

// NotifyConfig configures status notifications. Empty topic logs only.
type NotifyConfig struct {
	NtfyServer string        `yaml:"ntfy_server"`
	NtfyTopic  string        `yaml:"ntfy_topic"`
	ResetAfter time.Duration `yaml:"reset_after"`
}

// MetricsConfig configures the Prometheus listener. Empty addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		SelfAppID: policy.DefaultSelfAppID,
		Store: StoreConfig{
			Backend:     StoreSQLCipher,
			RedisPrefix: "focuslock",
		},
		Source: SourceConfig{
			Kind:         SourceADB,
			NatsSubject:  "focuslock.foreground",
			PollInterval: time.Second,
		},
		ADB: ADBConfig{
			Path:    "adb",
			Timeout: 5 * time.Second,
		},
		Action: ActionConfig{
			Kind: ActionADB,
		},
		Notify: NotifyConfig{
			NtfyServer: "https://ntfy.sh",
			ResetAfter: 3 * time.Second,
		},
		HeartbeatInterval: 30 * time.Second,
	}
}

// Load reads the config file at the standard location (if any) and applies
// environment overrides.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom is Load with an explicit file path. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Path returns the config file path.
func Path() string {
	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		return path
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "focuslock", "config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "focuslock", "config.yaml")
	}
	return ""
}

func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - path comes from env or standard locations
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadFromEnv(cfg *Config) error {
	strs := map[string]*string{
		"DATA_DIR":     &cfg.DataDir,
		"LOG_LEVEL":    &cfg.LogLevel,
		"SELF_APP_ID":  &cfg.SelfAppID,
		"STORE":        &cfg.Store.Backend,
		"REDIS_URL":    &cfg.Store.RedisURL,
		"SOURCE":       &cfg.Source.Kind,
		"NATS_URL":     &cfg.Source.NatsURL,
		"NATS_SUBJECT": &cfg.Source.NatsSubject,
		"ADB_PATH":     &cfg.ADB.Path,
		"ADB_SERIAL":   &cfg.ADB.Serial,
		"ACTION":       &cfg.Action.Kind,
		"NTFY_SERVER":  &cfg.Notify.NtfyServer,
		"NTFY_TOPIC":   &cfg.Notify.NtfyTopic,
		"METRICS_ADDR": &cfg.Metrics.Addr,
	}
	for name, dst := range strs {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL":      &cfg.Source.PollInterval,
		"ADB_TIMEOUT":        &cfg.ADB.Timeout,
		"NOTIFY_RESET_AFTER": &cfg.Notify.ResetAfter,
		"HEARTBEAT_INTERVAL": &cfg.HeartbeatInterval,
	}
	for name, dst := range durations {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	return nil
}

// Validate checks enumerations and durations.
func (c *Config) Validate() error {
	if _, err := c.ZapLevel(); err != nil {
		return err
	}
	if strings.TrimSpace(c.SelfAppID) == "" {
		return fmt.Errorf("self_app_id must not be empty")
	}

	switch c.Store.Backend {
	case StoreSQLCipher:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q (use %s or %s)", c.Store.Backend, StoreSQLCipher, StoreRedis)
	}

	switch c.Source.Kind {
	case SourceADB, SourceStdin:
	case SourceNATS:
		if c.Source.NatsSubject == "" {
			return fmt.Errorf("source.nats_subject is required for the nats source")
		}
	default:
		return fmt.Errorf("unknown source.kind %q (use %s, %s or %s)", c.Source.Kind, SourceADB, SourceNATS, SourceStdin)
	}

	switch c.Action.Kind {
	case ActionADB, ActionProcess, ActionLog:
	default:
		return fmt.Errorf("unknown action.kind %q (use %s, %s or %s)", c.Action.Kind, ActionADB, ActionProcess, ActionLog)
	}

	if c.Source.PollInterval <= 0 {
		return fmt.Errorf("source.poll_interval must be positive")
	}
	if c.ADB.Timeout <= 0 {
		return fmt.Errorf("adb.timeout must be positive")
	}
	if c.Notify.ResetAfter < 0 {
		return fmt.Errorf("notify.reset_after must not be negative")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	return nil
}

// ZapLevel parses LogLevel.
func (c *Config) ZapLevel() (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// UsesADB reports whether any component needs the adb binary.
func (c *Config) UsesADB() bool {
	return c.Source.Kind == SourceADB || c.Action.Kind == ActionADB
}
