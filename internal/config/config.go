package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

// Defaults applied by Validate.
const (
	DefaultTMDbBaseURL      = "https://api.themoviedb.org/3"
	DefaultTMDbImageBaseURL = "https://image.tmdb.org/t/p/"
	DefaultTimeout          = 10 * time.Second
	DefaultDebounce         = 500 * time.Millisecond
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultHTTPAddr         = ":8080"
	DefaultShutdownTimeout  = 5 * time.Second
)

const envPrefix = "MARQUEE_"

// Config represents the main application configuration
type Config struct {
	TMDb   TMDbConfig   `yaml:"tmdb"`
	Search SearchConfig `yaml:"search"`

	// Frontends
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	HTTP     HTTPConfig      `yaml:"http"`

	App AppConfig `yaml:"app"`
}

// TMDbConfig holds TMDb API configuration
type TMDbConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url,omitempty"`
	ImageBaseURL string        `yaml:"image_base_url,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	// CacheTTL enables the per-movie response cache when positive.
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
}

// SearchConfig holds search input settings
type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token"`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids,omitempty"`
}

// HTTPConfig holds the JSON API server settings
type HTTPConfig struct {
	Addr            string        `yaml:"addr,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	LogLevel  string `yaml:"log_level"`  // "debug", "info", "warn", "error"
	LogFormat string `yaml:"log_format"` // "json", "text"
}

// Load reads configuration from a YAML file, then applies MARQUEE_* overrides
// from the environment and from a .env file. An empty path loads from the
// environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	envDir := "."

	if path != "" {
		if err := validateConfigPath(path); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		envDir = filepath.Dir(path)
	}

	dotenv, err := readDotEnv(filepath.Join(envDir, ".env"))
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides(lookupEnv(dotenv))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func validateConfigPath(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path is a directory: %s", path)
	}
	return nil
}

// readDotEnv parses a .env file without touching the process environment.
// A missing file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return env, nil
}

// lookupEnv prefers the process environment over .env values.
func lookupEnv(dotenv map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
}

// applyEnvOverrides overrides config values with environment variables
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	env := func(name string) string { return getenv(envPrefix + name) }

	// TMDb
	if v := env("TMDB_API_KEY"); v != "" {
		c.TMDb.APIKey = v
	}
	if v := env("TMDB_BASE_URL"); v != "" {
		c.TMDb.BaseURL = v
	}
	if v := env("TMDB_IMAGE_BASE_URL"); v != "" {
		c.TMDb.ImageBaseURL = v
	}
	if v := env("TMDB_TIMEOUT"); v != "" {
		c.TMDb.Timeout = envDuration(v)
	}
	if v := env("TMDB_CACHE_TTL"); v != "" {
		c.TMDb.CacheTTL = envDuration(v)
	}

	// Search
	if v := env("SEARCH_DEBOUNCE"); v != "" {
		c.Search.Debounce = envDuration(v)
	}

	// Telegram
	if v := env("TELEGRAM_BOT_TOKEN"); v != "" {
		if c.Telegram == nil {
			c.Telegram = &TelegramConfig{}
		}
		c.Telegram.BotToken = v
	}
	if v := env("TELEGRAM_ALLOWED_USER_IDS"); v != "" && c.Telegram != nil {
		c.Telegram.AllowedUserIDs = parseIDs(v)
	}

	// HTTP
	if v := env("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := env("HTTP_SHUTDOWN_TIMEOUT"); v != "" {
		c.HTTP.ShutdownTimeout = envDuration(v)
	}

	// App
	if v := env("LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		c.App.LogFormat = v
	}
}

// envDuration parses v, mapping malformed input to -1 so Validate rejects it.
func envDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return -1
	}
	return d
}

func parseIDs(v string) []int64 {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			// Zero is never a valid Telegram user; Validate rejects it.
			id = 0
		}
		ids = append(ids, id)
	}
	return ids
}

func (c *Config) setDefaults() {
	if c.TMDb.BaseURL == "" {
		c.TMDb.BaseURL = DefaultTMDbBaseURL
	}
	if c.TMDb.ImageBaseURL == "" {
		c.TMDb.ImageBaseURL = DefaultTMDbImageBaseURL
	}
	if c.TMDb.Timeout == 0 {
		c.TMDb.Timeout = DefaultTimeout
	}
	if c.Search.Debounce == 0 {
		c.Search.Debounce = DefaultDebounce
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = DefaultLogLevel
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = DefaultLogFormat
	}
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"json", "text"}
)

// Validate applies defaults and validates the configuration
func (c *Config) Validate() error {
	c.setDefaults()

	if c.TMDb.APIKey == "" {
		return fmt.Errorf("tmdb.api_key is required")
	}
	if err := validateURL(c.TMDb.BaseURL, "tmdb.base_url"); err != nil {
		return err
	}
	if err := validateURL(c.TMDb.ImageBaseURL, "tmdb.image_base_url"); err != nil {
		return err
	}
	if c.TMDb.Timeout < 0 {
		return fmt.Errorf("tmdb.timeout must be positive")
	}
	if c.TMDb.CacheTTL < 0 {
		return fmt.Errorf("tmdb.cache_ttl must not be negative")
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("search.debounce must be positive")
	}

	if c.Telegram != nil {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required")
		}
		for _, id := range c.Telegram.AllowedUserIDs {
			if id <= 0 {
				return fmt.Errorf("telegram.allowed_user_ids must be positive integers")
			}
		}
	}

	if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
		return fmt.Errorf("http.addr must be host:port: %q", c.HTTP.Addr)
	}
	if c.HTTP.ShutdownTimeout < 0 {
		return fmt.Errorf("http.shutdown_timeout must be positive")
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.App.LogLevel)) {
		return fmt.Errorf("app.log_level must be one of %s", strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.App.LogFormat)) {
		return fmt.Errorf("app.log_format must be one of %s", strings.Join(validLogFormats, ", "))
	}

	return nil
}

func validateURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must use http or https: %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing host: %q", field, raw)
	}
	return nil
}
