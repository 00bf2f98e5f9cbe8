// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SSEHeartbeat   time.Duration `yaml:"sse_heartbeat"`
	AdminAPIKey    string        `yaml:"admin_api_key"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CreditsConfig struct {
	FreeDailyLimit int   `yaml:"free_daily_limit"`
	DebitPerJob    int64 `yaml:"debit_per_job"`
}

type RateLimitConfig struct {
	UserLimit    int           `yaml:"user_limit"`
	UserInterval time.Duration `yaml:"user_interval"`
	IPLimit      int           `yaml:"ip_limit"`
	IPInterval   time.Duration `yaml:"ip_interval"`
}

type QueueConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBaseMS     int           `yaml:"backoff_base_ms"`
	BackoffJitter     float64       `yaml:"backoff_jitter"`
	RemoveOnComplete  int           `yaml:"remove_on_complete"`
	RemoveOnFail      int           `yaml:"remove_on_fail"`
	WorkerConcurrency int           `yaml:"worker_concurrency"`
	StalledCheck      time.Duration `yaml:"stalled_check"`
	DeadLetterTTL     time.Duration `yaml:"dead_letter_ttl"`
}

type BlobConfig struct {
	Bucket                string        `yaml:"bucket"`
	UploadTTL             time.Duration `yaml:"upload_ttl"`
	DownloadTTL           time.Duration `yaml:"download_ttl"`
	OriginalRetentionDays int           `yaml:"original_retention_days"`
	ResultRetentionDays   int           `yaml:"result_retention_days"`
	SigningKey            string        `yaml:"signing_key"`
}

type ProviderConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	DefaultModel string `yaml:"default_model"`
}

type SecurityConfig struct {
	TokenVerifierSecret string `yaml:"token_verifier_secret"`
}

type PurchaseWebhookConfig struct {
	SigningSecret string `yaml:"signing_secret"`
}

type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Log       LogConfig             `yaml:"log"`
	Database  DatabaseConfig        `yaml:"database"`
	Redis     RedisConfig           `yaml:"redis"`
	Credits   CreditsConfig         `yaml:"credits"`
	RateLimit RateLimitConfig       `yaml:"rate_limit"`
	Queue     QueueConfig           `yaml:"queue"`
	Blob      BlobConfig            `yaml:"blob"`
	Provider  ProviderConfig        `yaml:"provider"`
	Security  SecurityConfig        `yaml:"security"`
	Purchase  PurchaseWebhookConfig `yaml:"purchase"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML file at path, applying defaults for
// every option spec.md §6 lists as recognized configuration. Missing
// required secrets abort startup with a precise message.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseFlags mirrors the teacher's cmd/app flag handling.
func ParseFlags() (path string, dev bool) {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (dev token verifier, console logging)")
	flag.Parse()
	return *cfgPath, *devMode
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.SSEHeartbeat <= 0 {
		cfg.Server.SSEHeartbeat = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MinConns <= 0 {
		cfg.Database.MinConns = 2
	}
	if cfg.Database.MaxConnLifetime <= 0 {
		cfg.Database.MaxConnLifetime = time.Hour
	}
	if cfg.Credits.FreeDailyLimit <= 0 {
		cfg.Credits.FreeDailyLimit = 3
	}
	if cfg.Credits.DebitPerJob <= 0 {
		cfg.Credits.DebitPerJob = 1
	}
	if cfg.RateLimit.UserLimit <= 0 {
		cfg.RateLimit.UserLimit = 120
	}
	if cfg.RateLimit.UserInterval <= 0 {
		cfg.RateLimit.UserInterval = 60 * time.Second
	}
	if cfg.RateLimit.IPLimit <= 0 {
		cfg.RateLimit.IPLimit = 100
	}
	if cfg.RateLimit.IPInterval <= 0 {
		cfg.RateLimit.IPInterval = 60 * time.Second
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 5
	}
	if cfg.Queue.BackoffBaseMS <= 0 {
		cfg.Queue.BackoffBaseMS = 1000
	}
	if cfg.Queue.BackoffJitter <= 0 {
		cfg.Queue.BackoffJitter = 0.3
	}
	if cfg.Queue.RemoveOnComplete <= 0 {
		cfg.Queue.RemoveOnComplete = 100
	}
	if cfg.Queue.RemoveOnFail <= 0 {
		cfg.Queue.RemoveOnFail = 500
	}
	if cfg.Queue.WorkerConcurrency <= 0 {
		cfg.Queue.WorkerConcurrency = 2
	}
	if cfg.Queue.StalledCheck <= 0 {
		cfg.Queue.StalledCheck = 10 * time.Second
	}
	if cfg.Queue.DeadLetterTTL <= 0 {
		cfg.Queue.DeadLetterTTL = 30 * 24 * time.Hour
	}
	if cfg.Blob.UploadTTL <= 0 {
		cfg.Blob.UploadTTL = 15 * time.Minute
	}
	if cfg.Blob.DownloadTTL <= 0 {
		cfg.Blob.DownloadTTL = 15 * time.Minute
	}
	if cfg.Blob.OriginalRetentionDays <= 0 {
		cfg.Blob.OriginalRetentionDays = 7
	}
	if cfg.Blob.ResultRetentionDays <= 0 {
		cfg.Blob.ResultRetentionDays = 30
	}
	if cfg.Provider.DefaultModel == "" {
		cfg.Provider.DefaultModel = "gpt-image-1"
	}
}

func (cfg *Config) validate() error {
	if cfg.Runtime.Dev {
		return nil
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Provider.OpenAIKey == "" && cfg.Provider.GeminiKey == "" {
		return errors.New("provider.openai_key or provider.gemini_key is required")
	}
	if cfg.Security.TokenVerifierSecret == "" {
		return errors.New("security.token_verifier_secret is required")
	}
	if cfg.Blob.SigningKey == "" {
		return errors.New("blob.signing_key is required")
	}
	return nil
}
