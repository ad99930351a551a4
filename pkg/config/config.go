// Package config loads collector configuration from the environment.
//
// An optional .env file in the working directory is loaded first; variables
// already set in the environment take precedence over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// PlaceholderKey is the value shipped in the example .env file.
const PlaceholderKey = "your_api_key_here"

// maxNumberedKeys is the highest API_FOOTBALL_KEY_<n> suffix read.
const maxNumberedKeys = 9

// Config holds collector configuration.
type Config struct {
	// Keys are the API credentials in rotation order.
	Keys []string

	// Host is the API host or base URL.
	Host string

	// RequestsPerMinute is the per-key request budget per window.
	RequestsPerMinute int

	// Leagues and Seasons scope the fixtures job.
	Leagues []int
	Seasons []int

	// DailyLimit is the per-key daily request quota.
	DailyLimit int

	// QuotaBuffer is the number of daily calls left unused.
	QuotaBuffer int

	// DataDir holds output tables and progress files.
	DataDir string

	LogLevel  string
	LogPretty bool

	// RedisURL enables the response cache when set.
	RedisURL      string
	RedisPassword string

	// MetricsAddr serves /metrics when set.
	MetricsAddr string

	// S3Bucket enables publishing of finished tables when set.
	S3Bucket string
	S3Prefix string
}

// Load reads configuration from .env and the environment and validates it.
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("keys", len(cfg.Keys)).
		Str("host", cfg.Host).
		Int("requests_per_minute", cfg.RequestsPerMinute).
		Ints("leagues", cfg.Leagues).
		Ints("seasons", cfg.Seasons).
		Int("daily_limit", cfg.DailyLimit).
		Str("data_dir", cfg.DataDir).
		Bool("cache", cfg.RedisURL != "").
		Bool("publish", cfg.S3Bucket != "").
		Msg("configuration loaded")

	return cfg, nil
}

// FromEnv builds a configuration from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, raw))
			return fallback
		}
		return n
	}
	listVar := func(key, fallback string) []int {
		out, err := parseInts(env(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return out
	}

	cfg := &Config{
		Keys:              collectKeys(getenv),
		Host:              env("API_FOOTBALL_HOST", "v3.football.api-sports.io"),
		RequestsPerMinute: intVar("REQUESTS_PER_KEY_PER_MINUTE", 10),
		Leagues:           listVar("LEAGUES", "1,4"),
		Seasons:           listVar("SEASONS", "2022,2023,2024"),
		DailyLimit:        intVar("DAILY_REQUEST_LIMIT", 7500),
		QuotaBuffer:       intVar("QUOTA_BUFFER", 100),
		DataDir:           env("DATA_DIR", "data"),
		LogLevel:          env("LOG_LEVEL", "info"),
		LogPretty:         env("LOG_PRETTY", "false") == "true",
		RedisURL:          env("REDIS_URL", ""),
		RedisPassword:     env("REDIS_PASSWORD", ""),
		MetricsAddr:       env("METRICS_ADDR", ""),
		S3Bucket:          env("S3_BUCKET", ""),
		S3Prefix:          strings.Trim(env("S3_PREFIX", "football"), "/"),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the collector cannot run with.
func (c *Config) Validate() error {
	if len(c.Keys) == 0 {
		return fmt.Errorf("no API key configured: set API_FOOTBALL_KEY or API_FOOTBALL_KEY_1..%d", maxNumberedKeys)
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("REQUESTS_PER_KEY_PER_MINUTE must be > 0, got %d", c.RequestsPerMinute)
	}
	if len(c.Seasons) == 0 {
		return fmt.Errorf("SEASONS must name at least one season")
	}
	if c.DailyLimit <= 0 {
		return fmt.Errorf("DAILY_REQUEST_LIMIT must be > 0, got %d", c.DailyLimit)
	}
	if c.QuotaBuffer < 0 {
		return fmt.Errorf("QUOTA_BUFFER must be >= 0, got %d", c.QuotaBuffer)
	}
	return nil
}

// collectKeys reads API_FOOTBALL_KEY and API_FOOTBALL_KEY_1..9 in that
// order, dropping blanks, placeholders and duplicates.
func collectKeys(getenv func(string) string) []string {
	names := []string{"API_FOOTBALL_KEY"}
	for i := 1; i <= maxNumberedKeys; i++ {
		names = append(names, "API_FOOTBALL_KEY_"+strconv.Itoa(i))
	}

	seen := make(map[string]bool)
	var keys []string
	for _, name := range names {
		k := strings.TrimSpace(getenv(name))
		if k == "" || k == PlaceholderKey || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", part)
		}
		out = append(out, n)
	}
	return out, nil
}
