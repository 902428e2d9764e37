// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	Firebase      FirebaseConfig      `yaml:"firebase"`
	Store         StoreConfig         `yaml:"store"`
	Auth          AuthConfig          `yaml:"auth"`
	Conversations ConversationsConfig `yaml:"conversations"`
	Functions     FunctionsConfig     `yaml:"functions"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Archive       ArchiveConfig       `yaml:"archive"`
	CORS          CORSConfig          `yaml:"cors"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	Timeout         time.Duration `yaml:"timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// OpenAIConfig configures the Assistants API client.
type OpenAIConfig struct {
	APIKey       string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL      string        `yaml:"base_url" env:"OPENAI_BASE_URL"`
	DefaultModel string        `yaml:"default_model" env:"OPENAI_DEFAULT_MODEL"`
	VisionModel  string        `yaml:"vision_model" env:"OPENAI_VISION_MODEL"`
	ImageSize    string        `yaml:"image_size" env:"OPENAI_IMAGE_SIZE"`
	PollInterval time.Duration `yaml:"poll_interval"`
	RunTimeout   time.Duration `yaml:"run_timeout"`
}

// FirebaseConfig is shared by the firebase document store and token verification.
type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id" env:"FIREBASE_PROJECT_ID"`
	DatabaseURL     string `yaml:"database_url" env:"FIREBASE_DATABASE_URL"`
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Type        string `yaml:"type" env:"STORE_TYPE"` // memory, firebase, postgres, sqlite
	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_URL"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Enabled       bool          `yaml:"enabled" env:"AUTH_ENABLED"`
	VerifyTimeout time.Duration `yaml:"verify_timeout"`
	RoleClaim     string        `yaml:"role_claim"`
	AdminRole     string        `yaml:"admin_role"`
}

// ConversationsConfig holds the session lifecycle defaults.
type ConversationsConfig struct {
	DefaultExpiresIn   int           `yaml:"default_expires_in"` // minutes
	DefaultMaxMessages int           `yaml:"default_max_messages"`
	PurgeAfter         time.Duration `yaml:"purge_after"`
	SweepInterval      time.Duration `yaml:"sweep_interval"` // 0 disables the background sweeper
}

// FunctionsConfig configures custom function execution.
type FunctionsConfig struct {
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	Parallelism    int           `yaml:"parallelism"`
}

// CatalogConfig points at an optional YAML product catalog. Empty means the
// built-in demo catalog.
type CatalogConfig struct {
	Path string `yaml:"path" env:"CATALOG_PATH"`
}

// ArchiveConfig selects where transcripts are kept before conversations are purged.
type ArchiveConfig struct {
	Type     string `yaml:"type" env:"ARCHIVE_TYPE"` // none, memory, filesystem, s3
	BaseDir  string `yaml:"base_dir"`
	Bucket   string `yaml:"bucket" env:"ARCHIVE_S3_BUCKET"`
	Region   string `yaml:"region" env:"AWS_REGION"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint" env:"ARCHIVE_S3_ENDPOINT"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// RateLimitConfig throttles the public conversation endpoints.
type RateLimitConfig struct {
	Enabled  bool   `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	Rate     string `yaml:"rate"`  // limiter formatted rate, e.g. "60-M"
	Store    string `yaml:"store"` // memory or redis
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string `yaml:"prefix"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load reads configuration from a YAML file layered over Default(), then
// applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads variables from the given dotenv files without
// overriding variables already set. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Conversations: ConversationsConfig{
			SweepInterval: 15 * time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
	applyDefaults(cfg)
	return cfg
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Store.Type {
	case "firebase":
		if c.Firebase.DatabaseURL == "" {
			errs = append(errs, errors.New("firebase.database_url is required for the firebase store"))
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres store"))
		}
	}
	if c.Archive.Type == "s3" && c.Archive.Bucket == "" {
		errs = append(errs, errors.New("archive.bucket is required for the s3 archive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.Store == "redis" && c.RateLimit.RedisURL == "" {
		errs = append(errs, errors.New("rate_limit.redis_url is required for the redis limiter store"))
	}
	return errors.Join(errs...)
}

// StoreParams returns the provider parameters for the configured document store.
func (c *Config) StoreParams() map[string]string {
	return map[string]string{
		"project_id":       c.Firebase.ProjectID,
		"database_url":     c.Firebase.DatabaseURL,
		"credentials_file": c.Firebase.CredentialsFile,
		"dsn":              c.Store.PostgresDSN,
		"path":             c.Store.SQLitePath,
	}
}

// ArchiveParams returns the provider parameters for the transcript archive.
func (c *Config) ArchiveParams() map[string]string {
	return map[string]string{
		"base_dir": c.Archive.BaseDir,
		"bucket":   c.Archive.Bucket,
		"region":   c.Archive.Region,
		"prefix":   c.Archive.Prefix,
		"endpoint": c.Archive.Endpoint,
	}
}

func applyDefaults(cfg *Config) {
	applyOpenAIDefaults(&cfg.OpenAI)
	applyStoreDefaults(&cfg.Store)
	applyAuthDefaults(&cfg.Auth)
	applyConversationDefaults(&cfg.Conversations)
	applyFunctionDefaults(&cfg.Functions)
	applyArchiveDefaults(&cfg.Archive)
	applyRateLimitDefaults(&cfg.RateLimit)
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyOpenAIDefaults(cfg *OpenAIConfig) {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4-turbo"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gpt-4o"
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = "1024x1024"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "conversation-gateway.db"
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.VerifyTimeout == 0 {
		cfg.VerifyTimeout = 5 * time.Second
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "role"
	}
	if cfg.AdminRole == "" {
		cfg.AdminRole = "admin"
	}
}

func applyConversationDefaults(cfg *ConversationsConfig) {
	if cfg.DefaultExpiresIn == 0 {
		cfg.DefaultExpiresIn = 60
	}
	if cfg.DefaultMaxMessages == 0 {
		cfg.DefaultMaxMessages = 50
	}
	if cfg.PurgeAfter == 0 {
		cfg.PurgeAfter = 24 * time.Hour
	}
}

func applyFunctionDefaults(cfg *FunctionsConfig) {
	if cfg.WebhookTimeout == 0 {
		cfg.WebhookTimeout = 10 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
}

func applyArchiveDefaults(cfg *ArchiveConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = "transcripts"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "transcripts/"
	}
}

func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.Rate == "" {
		cfg.Rate = "60-M"
	}
	if cfg.Store == "" {
		cfg.Store = "memory"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "convgw"
	}
}
