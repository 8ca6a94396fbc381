package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/scenekit/builder-backend/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration loaded from configs/config.<APP_ENV>.yaml
type Config struct {
	App            AppConfig            `yaml:"app"`
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	JWT            JWTConfig            `yaml:"jwt"`
	CORS           CORSConfig           `yaml:"cors"`
	Storage        StorageConfig        `yaml:"storage"`
	Chain          ChainConfig          `yaml:"chain"`
	Forum          ForumConfig          `yaml:"forum"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	ReadTimeout     int `yaml:"read_timeout"`     // seconds
	WriteTimeout    int `yaml:"write_timeout"`    // seconds
	ShutdownTimeout int `yaml:"shutdown_timeout"` // seconds
	RateLimit       int `yaml:"rate_limit"`       // requests per minute per caller, 0 disables
}

type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // postgres, mysql, sqlite
	DSN             string `yaml:"dsn"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
	LogSQL          bool   `yaml:"log_sql"`
}

// GetDSN returns the configured DSN
func (d DatabaseConfig) GetDSN() string {
	return d.DSN
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"` // seconds
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"` // comma separated
}

type StorageConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	CDNURL          string `yaml:"cdn_url"`
	BasePath        string `yaml:"base_path"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

type ChainConfig struct {
	CollectionsURL    string `yaml:"collections_url"`
	ThirdPartyURL     string `yaml:"third_party_url"`
	CommitteeURL      string `yaml:"committee_url"`
	HTTPTimeout       int    `yaml:"http_timeout"`        // seconds
	CommitteeCacheTTL int    `yaml:"committee_cache_ttl"` // seconds
}

type ForumConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	User       string `yaml:"user"`
	Category   int    `yaml:"category"`
	Timeout    int    `yaml:"timeout"`     // seconds
	BuilderURL string `yaml:"builder_url"` // linked from notification posts
}

type ReconciliationConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// HTTPTimeoutDuration returns the outbound chain client timeout
func (c ChainConfig) HTTPTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// CommitteeCacheTTLDuration returns how long the committee list is cached
func (c ChainConfig) CommitteeCacheTTLDuration() time.Duration {
	return time.Duration(c.CommitteeCacheTTL) * time.Second
}

// IsDevelopment reports whether the app runs in a local or development env
func (c *Config) IsDevelopment() bool {
	switch c.App.Env {
	case "", "local", "dev", "development":
		return true
	}
	return false
}

// Origins splits the comma separated CORS origins
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads the YAML file at path, applies env overrides and defaults, and validates the result.
// A missing file is not an error; env vars alone can configure the server.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the server cannot run without
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret (JWT_SECRET) is required")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn (DB_DSN) is required")
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Reconciliation.Concurrency < 1 {
		return errors.New("reconciliation.concurrency must be positive")
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.App.Name == "" {
		c.App.Name = "builder-backend"
	}
	if c.App.Env == "" {
		c.App.Env = "local"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 300
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.JWT.ExpiresIn == 0 {
		c.JWT.ExpiresIn = 86400
	}
	if c.CORS.AllowOrigins == "" {
		c.CORS.AllowOrigins = "http://localhost:3000"
	}
	if c.Chain.HTTPTimeout == 0 {
		c.Chain.HTTPTimeout = 10
	}
	if c.Chain.CommitteeCacheTTL == 0 {
		c.Chain.CommitteeCacheTTL = 300
	}
	if c.Forum.BuilderURL == "" {
		c.Forum.BuilderURL = "https://builder.example.org"
	}
	if c.Forum.Timeout == 0 {
		c.Forum.Timeout = 10
	}
	if c.Reconciliation.Concurrency == 0 {
		c.Reconciliation.Concurrency = 4
	}
}

func applyEnv(c *Config) {
	setString(&c.App.Env, "APP_ENV")
	setString(&c.App.LogLevel, "LOG_LEVEL")
	setInt(&c.Server.Port, "PORT")
	setInt(&c.Server.RateLimit, "RATE_LIMIT")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.DSN, "DB_DSN")
	setString(&c.Redis.Host, "REDIS_HOST")
	setInt(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.JWT.Secret, "JWT_SECRET")
	setString(&c.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")
	setString(&c.Storage.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.Storage.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Storage.Bucket, "AWS_STORAGE_BUCKET_NAME")
	setString(&c.Chain.CollectionsURL, "COLLECTIONS_GRAPH_URL")
	setString(&c.Chain.ThirdPartyURL, "THIRD_PARTY_GRAPH_URL")
	setString(&c.Chain.CommitteeURL, "COMMITTEE_URL")
	setString(&c.Forum.URL, "FORUM_URL")
	setString(&c.Forum.APIKey, "FORUM_API_KEY")
	setString(&c.Forum.User, "FORUM_USER")
	setInt(&c.Forum.Category, "FORUM_CATEGORY")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// LogResolved prints the effective configuration without secrets
func LogResolved(c *Config) {
	logger.GetLogger().Info().
		Str("env", c.App.Env).
		Int("port", c.Server.Port).
		Str("db_driver", c.Database.Driver).
		Str("redis", fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)).
		Bool("storage", c.Storage.Enabled).
		Str("collections_url", c.Chain.CollectionsURL).
		Str("third_party_url", c.Chain.ThirdPartyURL).
		Bool("forum", c.Forum.URL != "").
		Int("reconciliation_concurrency", c.Reconciliation.Concurrency).
		Msg("config resolved")
}
