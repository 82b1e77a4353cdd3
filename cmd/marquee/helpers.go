package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/vadimtrunov/marquee/internal/catalog"
	"github.com/vadimtrunov/marquee/internal/config"
	"github.com/vadimtrunov/marquee/internal/httpclient"
	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

// Lipgloss styles used across commands.
var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // blue
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow

	styleTitle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	styleAccent = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true) // cyan bold

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("5")).
			MarginBottom(1)
)

// loadConfig loads and validates the configuration file. A missing file at
// the default location is not an error: configuration then comes from the
// environment alone.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// setup loads the configuration and installs the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, config.SetupLogger(cfg.App), nil
}

// newTMDbClient creates the TMDb client described by cfg.
func newTMDbClient(cfg *config.Config, logger *slog.Logger) *tmdb.Client {
	hc := httpclient.New(httpclient.Config{Timeout: cfg.TMDb.Timeout}, logger)
	opts := []tmdb.Option{
		tmdb.WithBaseURL(cfg.TMDb.BaseURL),
		tmdb.WithImageBaseURL(cfg.TMDb.ImageBaseURL),
		tmdb.WithHTTPClient(hc),
	}
	if cfg.TMDb.CacheTTL > 0 {
		opts = append(opts, tmdb.WithCache(cfg.TMDb.CacheTTL))
	}

	logger.Debug("TMDb client initialized",
		slog.String("url", sanitizeURL(cfg.TMDb.BaseURL)),
		slog.Duration("timeout", cfg.TMDb.Timeout),
		slog.Duration("cache_ttl", cfg.TMDb.CacheTTL),
	)
	return tmdb.New(cfg.TMDb.APIKey, logger, opts...)
}

// newFetcher wires a fresh store to api.
func newFetcher(api catalog.MovieAPI, logger *slog.Logger) *catalog.Fetcher {
	return catalog.NewFetcher(api, catalog.NewStore(logger), logger)
}

// storeError turns a failed fetch into the message the store recorded for
// the user, keeping err as the cause.
func storeError(store *catalog.Store, err error) error {
	if msg := store.Snapshot().Error; msg != "" {
		return &displayError{msg: msg, err: err}
	}
	return err
}

type displayError struct {
	msg string
	err error
}

func (e *displayError) Error() string { return e.msg }
func (e *displayError) Unwrap() error { return e.err }

// sanitizeURL strips credentials, query params, and fragment from a URL for safe logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return "<redacted>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
