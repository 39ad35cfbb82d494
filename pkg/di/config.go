package di

import (
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-rowcache/cache"
)

// Config is the complete container configuration, usually loaded from YAML.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Cache    cache.Config   `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
}

// DatabaseConfig selects the SQL driver. Driver is one of sqlite3, postgres
// or mysql.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RedisConfig enables cross-process change notifications when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// DefaultConfig returns a local sqlite setup without Redis.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "file:rowcache.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on",
		},
		Cache: cache.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads path on top of DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryNotFound, "read config "+path).
			WithTextCode("CONFIG_READ")
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "decode config").
			WithTextCode("CONFIG_DECODE")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	errs := validation.Errors{
		"database.driver":         validation.Validate(c.Database.Driver, validation.Required, validation.In("sqlite3", "postgres", "mysql")),
		"database.dsn":            validation.Validate(c.Database.DSN, validation.Required),
		"database.max_open_conns": validation.Validate(c.Database.MaxOpenConns, validation.Min(0)),
		"log.level":               validation.Validate(strings.ToLower(c.Log.Level), validation.In("debug", "info", "warn", "error")),
		"log.format":              validation.Validate(c.Log.Format, validation.In("text", "json")),
		"redis.db":                validation.Validate(c.Redis.DB, validation.Min(0)),
	}
	if err := errs.Filter(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").
			WithTextCode("CONFIG_INVALID")
	}
	return c.Cache.Validate()
}
