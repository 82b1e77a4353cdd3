package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type validateCase struct {
	name    string
	modify  func(*Config)
	wantErr string
}

// validConfig returns a minimal Config that passes Validate().
func validConfig() Config {
	return Config{
		TMDb: TMDbConfig{APIKey: "tmdb-key"},
		App:  AppConfig{LogLevel: "info"},
	}
}

func TestValidate_CoreFields(t *testing.T) {
	t.Parallel()

	tests := []validateCase{
		{"valid_minimal", nil, ""},
		{"missing_tmdb_key", func(c *Config) { c.TMDb.APIKey = "" }, "tmdb.api_key is required"},
		{"base_url_bad_scheme", func(c *Config) {
			c.TMDb.BaseURL = "ftp://api.themoviedb.org/3"
		}, "must use http or https"},
		{"image_url_no_host", func(c *Config) { c.TMDb.ImageBaseURL = "https://" }, "missing host"},
		{"negative_timeout", func(c *Config) { c.TMDb.Timeout = -time.Second }, "tmdb.timeout must be positive"},
		{"negative_cache_ttl", func(c *Config) { c.TMDb.CacheTTL = -time.Second }, "tmdb.cache_ttl must not be negative"},
		{"negative_debounce", func(c *Config) { c.Search.Debounce = -1 }, "search.debounce must be positive"},
		{"invalid_log_level", func(c *Config) { c.App.LogLevel = "trace" }, "app.log_level must be one of"},
		{"warning_accepted", func(c *Config) { c.App.LogLevel = "warning" }, ""},
		{"invalid_log_format", func(c *Config) { c.App.LogFormat = "xml" }, "app.log_format must be one of"},
		{"text_format", func(c *Config) { c.App.LogFormat = "text" }, ""},
		{"http_addr_port_only", func(c *Config) { c.HTTP.Addr = ":9090" }, ""},
		{"http_addr_no_port", func(c *Config) { c.HTTP.Addr = "localhost" }, "http.addr must be host:port"},
		{"negative_shutdown", func(c *Config) { c.HTTP.ShutdownTimeout = -time.Second }, "http.shutdown_timeout must be positive"},
	}

	runValidateTests(t, tests)
}

func TestValidate_Telegram(t *testing.T) {
	t.Parallel()

	tests := []validateCase{
		{"telegram_missing_token", func(c *Config) {
			c.Telegram = &TelegramConfig{}
		}, "telegram.bot_token is required"},
		{"telegram_bad_user_id", func(c *Config) {
			c.Telegram = &TelegramConfig{BotToken: "123:ABC", AllowedUserIDs: []int64{42, 0}}
		}, "telegram.allowed_user_ids must be positive"},
		{"telegram_valid", func(c *Config) {
			c.Telegram = &TelegramConfig{BotToken: "123:ABC", AllowedUserIDs: []int64{42}}
		}, ""},
	}

	runValidateTests(t, tests)
}

func runValidateTests(t *testing.T, tests []validateCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			if tt.modify != nil {
				tt.modify(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"valid_https", "https://api.themoviedb.org/3", ""},
		{"valid_http_port", "http://localhost:8080", ""},
		{"ftp_scheme", "ftp://localhost", "must use http or https"},
		{"no_scheme", "localhost:8080", "must use http or https"},
		{"empty_string", "", "must use http or https"},
		{"missing_host", "http://", "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateURL(tt.url, "test.url")
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	t.Run("empty_gets_defaults", func(t *testing.T) {
		t.Parallel()
		cfg := Config{}
		cfg.setDefaults()
		if cfg.TMDb.BaseURL != DefaultTMDbBaseURL {
			t.Errorf("expected base url %q, got %q", DefaultTMDbBaseURL, cfg.TMDb.BaseURL)
		}
		if cfg.TMDb.ImageBaseURL != DefaultTMDbImageBaseURL {
			t.Errorf("expected image base url %q, got %q", DefaultTMDbImageBaseURL, cfg.TMDb.ImageBaseURL)
		}
		if cfg.TMDb.Timeout != 10*time.Second {
			t.Errorf("expected timeout 10s, got %v", cfg.TMDb.Timeout)
		}
		if cfg.TMDb.CacheTTL != 0 {
			t.Errorf("expected cache disabled, got %v", cfg.TMDb.CacheTTL)
		}
		if cfg.Search.Debounce != 500*time.Millisecond {
			t.Errorf("expected debounce 500ms, got %v", cfg.Search.Debounce)
		}
		if cfg.App.LogLevel != "info" || cfg.App.LogFormat != "json" {
			t.Errorf("expected info/json, got %q/%q", cfg.App.LogLevel, cfg.App.LogFormat)
		}
		if cfg.HTTP.Addr != DefaultHTTPAddr || cfg.HTTP.ShutdownTimeout != DefaultShutdownTimeout {
			t.Errorf("unexpected http defaults %q / %v", cfg.HTTP.Addr, cfg.HTTP.ShutdownTimeout)
		}
	})

	t.Run("values_preserved", func(t *testing.T) {
		t.Parallel()
		cfg := Config{
			TMDb:   TMDbConfig{BaseURL: "http://localhost:9000", Timeout: 3 * time.Second},
			Search: SearchConfig{Debounce: time.Second},
			App:    AppConfig{LogLevel: "debug", LogFormat: "text"},
		}
		cfg.setDefaults()
		if cfg.TMDb.BaseURL != "http://localhost:9000" {
			t.Errorf("expected base url preserved, got %q", cfg.TMDb.BaseURL)
		}
		if cfg.TMDb.Timeout != 3*time.Second {
			t.Errorf("expected timeout 3s, got %v", cfg.TMDb.Timeout)
		}
		if cfg.Search.Debounce != time.Second {
			t.Errorf("expected debounce 1s, got %v", cfg.Search.Debounce)
		}
		if cfg.App.LogLevel != "debug" || cfg.App.LogFormat != "text" {
			t.Errorf("expected debug/text, got %q/%q", cfg.App.LogLevel, cfg.App.LogFormat)
		}
	})
}

func TestLoad_ValidMinimal(t *testing.T) {
	t.Parallel()
	path := writeTempYAML(t, minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TMDb.APIKey != "yaml-key" {
		t.Errorf("expected api key yaml-key, got %q", cfg.TMDb.APIKey)
	}
	if cfg.TMDb.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", cfg.TMDb.Timeout)
	}
	if cfg.Telegram != nil {
		t.Error("expected telegram to stay unconfigured")
	}
	if cfg.App.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.App.LogLevel)
	}
}

func TestLoad_Full(t *testing.T) {
	t.Parallel()
	fullYAML := `
tmdb:
  api_key: tmdb-key
  base_url: http://localhost:9000/3
  timeout: 5s
  cache_ttl: 10m
search:
  debounce: 250ms
telegram:
  bot_token: "123:ABC"
  allowed_user_ids: [1, 2]
app:
  log_level: debug
  log_format: text
`
	path := writeTempYAML(t, fullYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TMDb.BaseURL != "http://localhost:9000/3" {
		t.Errorf("unexpected base url %q", cfg.TMDb.BaseURL)
	}
	if cfg.TMDb.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.TMDb.Timeout)
	}
	if cfg.TMDb.CacheTTL != 10*time.Minute {
		t.Errorf("expected 10m cache ttl, got %v", cfg.TMDb.CacheTTL)
	}
	if cfg.Search.Debounce != 250*time.Millisecond {
		t.Errorf("expected 250ms debounce, got %v", cfg.Search.Debounce)
	}
	if cfg.Telegram == nil || cfg.Telegram.BotToken != "123:ABC" || len(cfg.Telegram.AllowedUserIDs) != 2 {
		t.Errorf("unexpected telegram config %+v", cfg.Telegram)
	}
	if cfg.App.LogFormat != "text" {
		t.Errorf("expected text format, got %q", cfg.App.LogFormat)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid_yaml", func(t *testing.T) {
		t.Parallel()
		path := writeTempYAML(t, "{{invalid yaml}}")
		_, err := Load(path)
		if err == nil {
			t.Fatal("expected error for invalid YAML")
		}
		if !strings.Contains(err.Error(), "failed to parse") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("file_not_found", func(t *testing.T) {
		t.Parallel()
		_, err := Load("/nonexistent/path/config.yaml")
		if err == nil {
			t.Fatal("expected error for missing file")
		}
		if !strings.Contains(err.Error(), "config file not found") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("path_is_directory", func(t *testing.T) {
		t.Parallel()
		_, err := Load(t.TempDir())
		if err == nil {
			t.Fatal("expected error for directory path")
		}
		if !strings.Contains(err.Error(), "directory") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("invalid_config", func(t *testing.T) {
		t.Parallel()
		path := writeTempYAML(t, "app:\n  log_level: info\n")
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
			t.Fatalf("expected invalid configuration error, got %v", err)
		}
	})
}

func TestLoad_DotEnv(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  log_level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	dotenv := "MARQUEE_TMDB_API_KEY=dotenv-key\nMARQUEE_SEARCH_DEBOUNCE=1s\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TMDb.APIKey != "dotenv-key" {
		t.Errorf("expected key from .env, got %q", cfg.TMDb.APIKey)
	}
	if cfg.Search.Debounce != time.Second {
		t.Errorf("expected 1s debounce from .env, got %v", cfg.Search.Debounce)
	}
	if _, ok := os.LookupEnv("MARQUEE_SEARCH_DEBOUNCE"); ok {
		t.Error(".env must not leak into the process environment")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Run("api_key_override", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("MARQUEE_TMDB_API_KEY", "env-key")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TMDb.APIKey != "env-key" {
			t.Errorf("expected env-key, got %q", cfg.TMDb.APIKey)
		}
	})

	t.Run("env_only", func(t *testing.T) {
		t.Setenv("MARQUEE_TMDB_API_KEY", "env-key")
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TMDb.APIKey != "env-key" {
			t.Errorf("expected env-key, got %q", cfg.TMDb.APIKey)
		}
	})

	t.Run("durations", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("MARQUEE_TMDB_TIMEOUT", "2s")
		t.Setenv("MARQUEE_TMDB_CACHE_TTL", "1h")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TMDb.Timeout != 2*time.Second || cfg.TMDb.CacheTTL != time.Hour {
			t.Errorf("unexpected durations %v / %v", cfg.TMDb.Timeout, cfg.TMDb.CacheTTL)
		}
	})

	t.Run("invalid_duration", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("MARQUEE_TMDB_TIMEOUT", "soon")
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "tmdb.timeout must be positive") {
			t.Fatalf("expected timeout validation error, got %v", err)
		}
	})

	t.Run("telegram_created_from_env", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("MARQUEE_TELEGRAM_BOT_TOKEN", "123:TOKEN")
		t.Setenv("MARQUEE_TELEGRAM_ALLOWED_USER_IDS", "7, 8")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Telegram == nil || cfg.Telegram.BotToken != "123:TOKEN" {
			t.Fatal("expected telegram created from env")
		}
		if len(cfg.Telegram.AllowedUserIDs) != 2 || cfg.Telegram.AllowedUserIDs[1] != 8 {
			t.Errorf("unexpected user ids %v", cfg.Telegram.AllowedUserIDs)
		}
	})

	t.Run("http_override", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("MARQUEE_HTTP_ADDR", "127.0.0.1:9000")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.HTTP.Addr != "127.0.0.1:9000" {
			t.Errorf("expected 127.0.0.1:9000, got %q", cfg.HTTP.Addr)
		}
	})

	t.Run("log_level_override", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("MARQUEE_LOG_LEVEL", "debug")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.App.LogLevel != "debug" {
			t.Errorf("expected debug, got %q", cfg.App.LogLevel)
		}
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewLogger(&buf, AppConfig{LogLevel: "info", LogFormat: "text"}).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text output, got %q", buf.String())
	}

	buf.Reset()
	NewLogger(&buf, AppConfig{LogLevel: "info"}).Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected json output, got %q", buf.String())
	}

	buf.Reset()
	NewLogger(&buf, AppConfig{LogLevel: "warn"}).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
}

func TestLoggerContext(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	if LoggerFromContext(ctx) != logger {
		t.Error("expected logger from context")
	}
	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger fallback")
	}
}

const minimalYAML = `
tmdb:
  api_key: yaml-key
`

// writeTempYAML creates a temporary YAML file and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp yaml: %v", err)
	}
	return path
}
