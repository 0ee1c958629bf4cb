package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Filters   FiltersConfig   `mapstructure:"filters"`
	Permalink PermalinkConfig `mapstructure:"permalink"`
	SEO       SEOConfig       `mapstructure:"seo"`
	Nonce     NonceConfig     `mapstructure:"nonce"`
	Hooks     HooksConfig     `mapstructure:"hooks"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	SiteURL string `mapstructure:"site_url"`
	Mode    string `mapstructure:"mode"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration. Driver is "postgres" or "sqlite";
// Path is only used by sqlite.
type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Name        string `mapstructure:"name"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Path        string `mapstructure:"path"`
	TablePrefix string `mapstructure:"table_prefix"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
}

// CacheConfig selects the cache backend. Driver "memory" keeps everything in
// process and needs no Redis.
type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type FiltersConfig struct {
	QueryCeiling   int `mapstructure:"query_ceiling"`
	MaxPerPage     int `mapstructure:"max_per_page"`
	DefaultPerPage int `mapstructure:"default_per_page"`
	ExcerptWords   int `mapstructure:"excerpt_words"`
}

type PermalinkConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// SEOConfig points at the host CMS REST origins that expose the SEO plugin's
// primary term.
type SEOConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	Endpoints            []string `mapstructure:"endpoints"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	HealthPath           string   `mapstructure:"health_path"`
	BreakerCooldown      int      `mapstructure:"breaker_cooldown"`
}

type NonceConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type HooksConfig struct {
	Secret string `mapstructure:"secret"`
}

type WorkerConfig struct {
	Count int `mapstructure:"count"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return decode(v)
}

// Defaults returns the configuration with no file and no environment applied.
func Defaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Cache.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}
	if c.Filters.MaxPerPage <= 0 || c.Filters.MaxPerPage > 100 {
		return fmt.Errorf("filters.max_per_page must be within 1..100, got %d", c.Filters.MaxPerPage)
	}
	if c.Filters.QueryCeiling <= 0 {
		return fmt.Errorf("filters.query_ceiling must be positive")
	}
	if c.Redis.MinIdleTime <= 0 {
		return fmt.Errorf("redis.min_idle_time must be positive, got %d", c.Redis.MinIdleTime)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.site_url", "http://localhost:8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "wordpress")
	v.SetDefault("database.user", "wordpress")
	v.SetDefault("database.password", "wordpress")
	v.SetDefault("database.path", "./catalog.db")
	v.SetDefault("database.table_prefix", "wp_")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.key_prefix", "handy:")
	v.SetDefault("redis.consumer_group", "handy_rewrites")
	v.SetDefault("redis.min_idle_time", 120)

	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("filters.query_ceiling", 1000)
	v.SetDefault("filters.max_per_page", 100)
	v.SetDefault("filters.default_per_page", 12)
	v.SetDefault("filters.excerpt_words", 30)

	v.SetDefault("permalink.debounce", "30s")

	v.SetDefault("seo.enabled", false)
	v.SetDefault("seo.endpoints", []string{})
	v.SetDefault("seo.timeout", 5)
	v.SetDefault("seo.max_retries", 1)
	v.SetDefault("seo.max_requests_per_second", 20)
	v.SetDefault("seo.health_path", "/wp-json/")
	v.SetDefault("seo.breaker_cooldown", 300)

	v.SetDefault("nonce.secret", "")
	v.SetDefault("nonce.ttl", "12h")

	v.SetDefault("hooks.secret", "")

	v.SetDefault("worker.count", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
