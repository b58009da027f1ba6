package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-valtuudet/pkg/config"
	"github.com/tendant/simple-valtuudet/pkg/ratelimit"
)

type WebAPIEnv struct {
	ClientID       string        `env:"WEBAPI_CLIENT_ID"`
	ClientSecret   string        `env:"WEBAPI_CLIENT_SECRET"`
	APIOAuthSecret string        `env:"WEBAPI_OAUTH_SECRET"`
	WebAPIURL      string        `env:"WEBAPI_URL"`
	ClientBaseURL  string        `env:"CLIENT_BASE_URL" env-default:"http://localhost:4000"`
	RequestID      string        `env:"WEBAPI_REQUEST_ID" env-default:"goClient"`
	EndUserID      string        `env:"WEBAPI_END_USER_ID" env-default:"goEndUser"`
	RequestTimeout time.Duration `env:"WEBAPI_REQUEST_TIMEOUT" env-default:"30s"`
	ValidateHetu   bool          `env:"WEBAPI_VALIDATE_HETU" env-default:"true"`
}

type CorrelationEnv struct {
	CookieName string        `env:"CORRELATION_COOKIE_NAME" env-default:"webapi_session"`
	HashKey    string        `env:"CORRELATION_HASH_KEY"`
	BlockKey   string        `env:"CORRELATION_BLOCK_KEY"`
	Secure     bool          `env:"COOKIE_SECURE" env-default:"false"`
	MaxAge     time.Duration `env:"CORRELATION_MAX_AGE" env-default:"10m"`
}

type RateLimitEnv struct {
	Enabled           bool          `env:"RATE_LIMIT_ENABLED" env-default:"true"`
	Capacity          int           `env:"RATE_LIMIT_BURST" env-default:"10"`
	PerMinute         float64       `env:"RATE_LIMIT_PER_MINUTE" env-default:"30"`
	BucketTTL         time.Duration `env:"RATE_LIMIT_BUCKET_TTL" env-default:"1h"`
	TrustProxyHeaders bool          `env:"RATE_LIMIT_TRUST_PROXY" env-default:"false"`
}

type Config struct {
	WebAPI      WebAPIEnv
	Correlation CorrelationEnv
	RateLimit   RateLimitEnv

	// Lookups per callback running at once; 0 means one per principal
	MaxParallelLookups int `env:"MAX_PARALLEL_LOOKUPS" env-default:"0"`

	// Server
	AppConfig      app.AppConfig
	MetricsEnabled bool `env:"METRICS_ENABLED" env-default:"true"`
}

// loadConfig reads the environment into the package config types.
func loadConfig() (*Config, config.WebAPIConfig, error) {
	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, config.WebAPIConfig{}, fmt.Errorf("failed to read configuration: %w", err)
	}

	webCfg := config.DefaultWebAPIConfig()
	if err := copier.Copy(&webCfg, &cfg.WebAPI); err != nil {
		return nil, config.WebAPIConfig{}, fmt.Errorf("failed to copy web api configuration: %w", err)
	}
	return &cfg, webCfg, nil
}

func (c *Config) rateLimitConfig() (ratelimit.Config, error) {
	rlCfg := ratelimit.DefaultConfig()
	if err := copier.Copy(&rlCfg, &c.RateLimit); err != nil {
		return ratelimit.Config{}, fmt.Errorf("failed to copy rate limit configuration: %w", err)
	}
	return rlCfg, nil
}

func (c *Config) correlationConfig() (config.CorrelationConfig, error) {
	corrCfg := config.DefaultCorrelationConfig()
	if err := copier.Copy(&corrCfg, &c.Correlation); err != nil {
		return config.CorrelationConfig{}, fmt.Errorf("failed to copy correlation configuration: %w", err)
	}
	if config.IsProduction() {
		corrCfg.Secure = true
	}
	return corrCfg, nil
}

// loadEnvFile loads environment variables from a .env file if one exists.
// An explicit path must exist.
func loadEnvFile(path string) {
	if path != "" {
		slog.Info("Loading configuration from .env file", "path", path)
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load .env file", "path", path, "error", err)
		}
		return
	}

	envFile := ".env"
	if execPath, err := os.Executable(); err == nil {
		envFile = filepath.Join(filepath.Dir(execPath), ".env")
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		envFile = filepath.Join(cwd, ".env")
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}
