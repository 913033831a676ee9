package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"metalwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	Generative GenerativeConfig `mapstructure:"generative"`
	Feed       FeedConfig       `mapstructure:"feed"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Digest     DigestConfig     `mapstructure:"digest"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig points at the optional shared Redis instance.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	RedisURL string `mapstructure:"redis_url"`
	RedisDB  int    `mapstructure:"redis_db"`
}

// CatalogConfig controls where tracked metal symbols come from.
type CatalogConfig struct {
	Source         string        `mapstructure:"source"`
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	TTL            time.Duration `mapstructure:"ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AssistantConfig tunes the question pipeline.
type AssistantConfig struct {
	Location             string `mapstructure:"location"`
	WindowDays           int    `mapstructure:"window_days"`
	TrailingDays         int    `mapstructure:"trailing_days"`
	LookbackDays         int    `mapstructure:"lookback_days"`
	EvidenceExcerptChars int    `mapstructure:"evidence_excerpt_chars"`
}

// GenerativeConfig describes the chat completion backend.
type GenerativeConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// FeedConfig points at the daily price feed used by run and backfill.
type FeedConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Metals  []string      `mapstructure:"metals"`
}

// HTTPConfig configures the chat API listener.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DigestConfig governs the scheduled digest job.
type DigestConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	Offset          time.Duration `mapstructure:"offset"`
	Title           string        `mapstructure:"title"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Questions       []string      `mapstructure:"questions"`
}

// AlertingConfig defines digest routing.
type AlertingConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
	DefaultDays   int `mapstructure:"default_days"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("METALWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "metalwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.max_size_mb", 50)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age_days", 14)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")

	v.SetDefault("catalog.source", "store")
	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.api_key", "")
	v.SetDefault("catalog.ttl", "1h")
	v.SetDefault("catalog.request_timeout", "10s")

	v.SetDefault("assistant.location", "Asia/Kolkata")
	v.SetDefault("assistant.window_days", 3)
	v.SetDefault("assistant.trailing_days", 7)
	v.SetDefault("assistant.lookback_days", 30)
	v.SetDefault("assistant.evidence_excerpt_chars", 1500)

	v.SetDefault("generative.enabled", false)
	v.SetDefault("generative.base_url", "https://api.openai.com/v1")
	v.SetDefault("generative.api_key", "")
	v.SetDefault("generative.model", "gpt-4o-mini")
	v.SetDefault("generative.timeout", "25s")
	v.SetDefault("generative.temperature", 0.2)
	v.SetDefault("generative.max_tokens", 400)

	v.SetDefault("feed.url", "")
	v.SetDefault("feed.api_key", "")
	v.SetDefault("feed.timeout", "10s")
	v.SetDefault("feed.metals", []string{})

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "60s")

	v.SetDefault("digest.interval", "24h")
	v.SetDefault("digest.align_to_bucket", true)
	v.SetDefault("digest.offset", "9h")
	v.SetDefault("digest.title", "Metal price digest")
	v.SetDefault("digest.advisory_lock_key", int64(0x6d657461))
	v.SetDefault("digest.startup_delay", "0s")
	v.SetDefault("digest.questions", []string{"gold price today", "compare gold and silver"})

	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.max_data_points", 5000)
	v.SetDefault("export.default_days", 90)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Assistant.WindowDays < 0 {
		return fmt.Errorf("assistant.window_days cannot be negative")
	}
	if c.Assistant.TrailingDays <= 0 {
		return fmt.Errorf("assistant.trailing_days must be greater than zero")
	}
	if c.Assistant.LookbackDays <= 0 {
		return fmt.Errorf("assistant.lookback_days must be greater than zero")
	}
	if _, err := time.LoadLocation(c.Assistant.Location); err != nil {
		return fmt.Errorf("assistant.location: %w", err)
	}
	if c.Generative.Enabled {
		if c.Generative.BaseURL == "" {
			return fmt.Errorf("generative.base_url is required when generative.enabled")
		}
		if c.Generative.Timeout <= 0 {
			return fmt.Errorf("generative.timeout must be greater than zero")
		}
	}
	switch c.Catalog.Source {
	case "store", "static":
	case "http":
		if c.Catalog.URL == "" {
			return fmt.Errorf("catalog.url is required for the http source")
		}
	default:
		return fmt.Errorf("catalog.source %q is not supported", c.Catalog.Source)
	}
	if c.Catalog.TTL <= 0 {
		return fmt.Errorf("catalog.ttl must be greater than zero")
	}
	if c.Digest.Interval <= 0 {
		return fmt.Errorf("digest.interval must be greater than zero")
	}
	if c.Digest.Offset < 0 || c.Digest.Offset >= 24*time.Hour {
		return fmt.Errorf("digest.offset must be within a day")
	}
	if len(c.Digest.Questions) == 0 {
		return fmt.Errorf("digest.questions must not be empty")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// ResolveLocation returns the civil-date location, falling back to UTC.
func (c *Config) ResolveLocation() *time.Location {
	loc, err := time.LoadLocation(c.Assistant.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
