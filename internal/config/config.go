// Package config loads semlayer settings from an optional YAML file,
// SEMLAYER_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/semlayer/internal/semantic"
)

// EnvPrefix prefixes every environment variable: nlu.api_key is read from
// SEMLAYER_NLU_API_KEY.
const EnvPrefix = "SEMLAYER"

type Config struct {
	Definitions DefinitionsConfig `mapstructure:"definitions"`
	Model       ModelConfig       `mapstructure:"model"`
	Warehouse   WarehouseConfig   `mapstructure:"warehouse"`
	Audit       AuditConfig       `mapstructure:"audit"`
	NLU         NLUConfig         `mapstructure:"nlu"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
}

type DefinitionsConfig struct {
	Dir string `mapstructure:"dir"`
}

type ModelConfig struct {
	// BaseTable overrides the base_table of the definitions when set.
	BaseTable string `mapstructure:"base_table"`
	Dialect   string `mapstructure:"dialect"`
}

type WarehouseConfig struct {
	// Path is the SQLite database compiled queries run against. Empty
	// disables execution.
	Path string `mapstructure:"path"`
}

type AuditConfig struct {
	// Path is the SQLite audit log. Empty disables auditing.
	Path string `mapstructure:"path"`
}

type NLUConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type RedisConfig struct {
	// Addr enables the shared intent cache. Empty means in-memory.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults and environment binding set
// up. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// The provider's conventional variable works too.
	_ = v.BindEnv("nlu.api_key", EnvPrefix+"_NLU_API_KEY", "OPENAI_API_KEY")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("definitions.dir", "semantic")
	v.SetDefault("model.base_table", "")
	v.SetDefault("model.dialect", "generic")

	v.SetDefault("warehouse.path", "")
	v.SetDefault("audit.path", "")

	v.SetDefault("nlu.api_key", "")
	v.SetDefault("nlu.base_url", "")
	v.SetDefault("nlu.model", "gpt-4o-mini")
	v.SetDefault("nlu.temperature", 0)
	v.SetDefault("nlu.max_tokens", 512)
	v.SetDefault("nlu.timeout", 30*time.Second)
	v.SetDefault("nlu.cache_ttl", 24*time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.body_limit", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads file into v, or searches for semlayer.yaml in the working
// directory and $HOME/.config/semlayer when file is empty. A missing
// searched-for file is not an error; a missing explicit file is.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("semlayer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/semlayer")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	var errs []error
	if semantic.GetDialect(c.Model.Dialect) == nil {
		errs = append(errs, fmt.Errorf("model.dialect: unknown dialect %q", c.Model.Dialect))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", f))
	}
	if c.NLU.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("nlu.cache_ttl: must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Dialect resolves Model.Dialect. Call Validate first.
func (c *Config) Dialect() *semantic.Dialect {
	return semantic.GetDialect(c.Model.Dialect)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
