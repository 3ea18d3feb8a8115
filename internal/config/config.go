// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Workspace  string           `yaml:"workspace" mapstructure:"workspace"`
	EntityAPI  EntityAPIConfig  `yaml:"entity_api" mapstructure:"entity_api"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Schema     SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// EntityAPIConfig configures the HTTP entity store client.
type EntityAPIConfig struct {
	// Backend selects the updater implementation: "http" or "salesforce".
	Backend     string  `yaml:"backend" mapstructure:"backend"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Token       string  `yaml:"token" mapstructure:"token"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateRPS     float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// SalesforceConfig holds Salesforce JWT auth settings for the Salesforce
// backend.
type SalesforceConfig struct {
	ClientID string  `yaml:"client_id" mapstructure:"client_id"`
	Username string  `yaml:"username" mapstructure:"username"`
	KeyPath  string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string  `yaml:"login_url" mapstructure:"login_url"`
	RateRPS  float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// CacheConfig configures the three cache tiers.
type CacheConfig struct {
	// SessionPath is the SQLite file backing the session tier; ":memory:"
	// keeps it ephemeral.
	SessionPath string `yaml:"session_path" mapstructure:"session_path"`
	// WorkspaceDriver selects the workspace tier backend: "sqlite" or
	// "postgres".
	WorkspaceDriver string `yaml:"workspace_driver" mapstructure:"workspace_driver"`
	WorkspacePath   string `yaml:"workspace_path" mapstructure:"workspace_path"`
	WorkspaceDSN    string `yaml:"workspace_dsn" mapstructure:"workspace_dsn"`
	// Fetch tier (in-memory).
	FetchTTLSecs  int    `yaml:"fetch_ttl_secs" mapstructure:"fetch_ttl_secs"`
	FetchCapacity uint64 `yaml:"fetch_capacity" mapstructure:"fetch_capacity"`
	// JanitorIntervalSecs is how often expired SQLite entries are purged.
	JanitorIntervalSecs int `yaml:"janitor_interval_secs" mapstructure:"janitor_interval_secs"`
}

// SyncConfig configures the synchronization engine.
type SyncConfig struct {
	RecencyWindowMillis int `yaml:"recency_window_millis" mapstructure:"recency_window_millis"`
	NavigationDelayMs   int `yaml:"navigation_delay_ms" mapstructure:"navigation_delay_ms"`
	RetryAttempts       int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// SchemaConfig points at an optional field-schema override file.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP edit API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECORDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("workspace", "default")
	v.SetDefault("entity_api.backend", "http")
	v.SetDefault("entity_api.base_url", "http://localhost:3100/api")
	v.SetDefault("entity_api.token", "")
	v.SetDefault("entity_api.timeout_secs", 15)
	v.SetDefault("entity_api.rate_rps", 10)
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_rps", 5)
	v.SetDefault("cache.session_path", ":memory:")
	v.SetDefault("cache.workspace_driver", "sqlite")
	v.SetDefault("cache.workspace_path", "workspace-cache.db")
	v.SetDefault("cache.workspace_dsn", "")
	v.SetDefault("cache.fetch_ttl_secs", 300)
	v.SetDefault("cache.fetch_capacity", 100000)
	v.SetDefault("cache.janitor_interval_secs", 600)
	v.SetDefault("sync.recency_window_millis", 3000)
	v.SetDefault("sync.navigation_delay_ms", 300)
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("schema.path", "")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
