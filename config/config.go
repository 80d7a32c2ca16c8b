package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session store backends.
const (
	SessionBackendLocal  = "local"
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// DevSessionSecret is the default signing secret. Set FEELSCAPE_SESSION_SECRET
// for anything but local development.
const DevSessionSecret = "feelscape_dev_secret_change_me"

// Config holds all configuration of the client and its bridge server.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	MongoURI    string `mapstructure:"mongo_uri"`
	MongoDBName string `mapstructure:"mongo_db_name"`

	SessionBackend string        `mapstructure:"session_backend"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPrefix    string        `mapstructure:"redis_prefix"`
	SessionSecret  string        `mapstructure:"session_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`

	IdentityUpdateTimeout time.Duration `mapstructure:"identity_update_timeout"`
	DocumentWriteTimeout  time.Duration `mapstructure:"document_write_timeout"`
	SaveAttempts          int           `mapstructure:"save_attempts"`
	LegacySave            bool          `mapstructure:"legacy_save"`
	LegacySaveTimeout     time.Duration `mapstructure:"legacy_save_timeout"`

	LocalDBPath string `mapstructure:"local_db_path"`
	HTTPAddr    string `mapstructure:"http_addr"`

	OtelServiceName string `mapstructure:"otel_service_name"`
	Tracing         bool   `mapstructure:"tracing"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_db_name", "feelscape")
	v.SetDefault("session_backend", SessionBackendLocal)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_prefix", "feelscape")
	v.SetDefault("session_secret", DevSessionSecret)
	v.SetDefault("session_ttl", 30*24*time.Hour)
	v.SetDefault("identity_update_timeout", 8*time.Second)
	v.SetDefault("document_write_timeout", 12*time.Second)
	v.SetDefault("save_attempts", 2)
	v.SetDefault("legacy_save", false)
	v.SetDefault("legacy_save_timeout", 15*time.Second)
	v.SetDefault("local_db_path", "./feelscape.db")
	v.SetDefault("http_addr", "127.0.0.1:8088")
	v.SetDefault("otel_service_name", "feelscape")
	v.SetDefault("tracing", false)
}

// LoadConfig reads configuration from file, environment variables and
// defaults into v. A nil v uses a fresh viper instance. Flags bound to v
// before the call take precedence.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetConfigName("feelscape")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.feelscape")
	v.AddConfigPath("/etc/feelscape/")

	v.SetEnvPrefix("FEELSCAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.SessionBackend {
	case SessionBackendLocal, SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("invalid session_backend %q: want local, memory or redis", c.SessionBackend)
	}
	if c.SaveAttempts < 1 {
		return fmt.Errorf("save_attempts must be at least 1, got %d", c.SaveAttempts)
	}
	if c.IdentityUpdateTimeout <= 0 || c.DocumentWriteTimeout <= 0 || c.LegacySaveTimeout <= 0 {
		return errors.New("save timeouts must be positive")
	}
	if c.SessionSecret == "" {
		return errors.New("session_secret must not be empty")
	}
	return nil
}
