package config

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"qms/internal/paths"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// Config represents the project configuration stored in .qms/config.toml
type Config struct {
	Version int           `json:"version" mapstructure:"version" toml:"version"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging" toml:"logging"`
	Cache   CacheConfig   `json:"cache" mapstructure:"cache" toml:"cache"`
	Watch   WatchConfig   `json:"watch" mapstructure:"watch" toml:"watch"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format" toml:"format"` // "human" or "json"
	Level  string `json:"level" mapstructure:"level" toml:"level"`
	File   bool   `json:"file" mapstructure:"file" toml:"file"` // also write .qms/logs/qms.log
}

// CacheConfig contains index/cache behaviour
type CacheConfig struct {
	SearchLimit int  `json:"searchLimit" mapstructure:"search_limit" toml:"search_limit"`
	TraceDepth  int  `json:"traceDepth" mapstructure:"trace_depth" toml:"trace_depth"`
	AutoRebuild bool `json:"autoRebuild" mapstructure:"auto_rebuild" toml:"auto_rebuild"`
}

// WatchConfig controls `qms watch`
type WatchConfig struct {
	DebounceMs int `json:"debounceMs" mapstructure:"debounce_ms" toml:"debounce_ms"`
	// PollIntervalMs > 0 adds a staleness poll next to filesystem events.
	PollIntervalMs int `json:"pollIntervalMs" mapstructure:"poll_interval_ms" toml:"poll_interval_ms"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
		Cache: CacheConfig{
			SearchLimit: 100,
			TraceDepth:  10,
			AutoRebuild: true,
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
	}
}

// LoadConfig loads configuration from .qms/config.toml.
// Missing files yield the defaults; QMS_* environment variables
// (QMS_LOGGING_LEVEL, QMS_CACHE_SEARCH_LIMIT, ...) override both.
func LoadConfig(projectRoot string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("cache.search_limit", def.Cache.SearchLimit)
	v.SetDefault("cache.trace_depth", def.Cache.TraceDepth)
	v.SetDefault("cache.auto_rebuild", def.Cache.AutoRebuild)
	v.SetDefault("watch.debounce_ms", def.Watch.DebounceMs)
	v.SetDefault("watch.poll_interval_ms", def.Watch.PollIntervalMs)

	v.SetEnvPrefix("QMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if projectRoot != "" {
		v.AddConfigPath(paths.ToolDir(projectRoot))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to .qms/config.toml
func (c *Config) Save(projectRoot string) error {
	configPath := paths.ConfigPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be 'human' or 'json'"}
	}
	if c.Cache.SearchLimit < 0 {
		return &ConfigError{Field: "cache.search_limit", Message: "must not be negative"}
	}
	if c.Cache.TraceDepth < 0 {
		return &ConfigError{Field: "cache.trace_depth", Message: "must not be negative"}
	}
	if c.Watch.DebounceMs < 0 || c.Watch.PollIntervalMs < 0 {
		return &ConfigError{Field: "watch", Message: "intervals must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
