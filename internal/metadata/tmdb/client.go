package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vadimtrunov/marquee/internal/httpclient"
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p/"
)

// Client is a TMDb API v3 client.
type Client struct {
	baseURL      string
	imageBaseURL string
	apiKey       string
	http         *httpclient.Client
	logger       *slog.Logger

	details *cache[*MovieDetails]
	images  *cache[*MovieImages]
	videos  *cache[[]Video]
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithImageBaseURL overrides the image host used by Client.ImageURL.
func WithImageBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.imageBaseURL = u
		}
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithCache enables caching of details, images and videos for ttl.
// Listings (upcoming, search) are never cached.
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		c.details = newCache[*MovieDetails](ttl)
		c.images = newCache[*MovieImages](ttl)
		c.videos = newCache[[]Video](ttl)
	}
}

// New creates a new TMDb client.
func New(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:      defaultBaseURL,
		imageBaseURL: defaultImageBaseURL,
		apiKey:       apiKey,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New(httpclient.DefaultConfig(), logger)
	}
	return c
}

// NewForTest creates a TMDb client with a custom base URL for testing.
// Exported because it is used by cross-package tests (e.g. internal/mcp).
func NewForTest(baseURL string, logger *slog.Logger) *Client {
	return New("test-key", logger, WithBaseURL(baseURL))
}

// ImageURL builds an image URL on the configured image host.
func (c *Client) ImageURL(path string, size ImageSize) string {
	return joinImageURL(c.imageBaseURL, path, size)
}

// GetUpcoming returns one page of upcoming movies. page < 1 is treated as 1.
func (c *Client) GetUpcoming(ctx context.Context, page int) (*MoviePage, error) {
	var resp MoviePage
	if err := c.get(ctx, "/movie/upcoming", pageParams(page), &resp); err != nil {
		return nil, fmt.Errorf("get upcoming page %d: %w", page, err)
	}
	return &resp, nil
}

// SearchMovies searches for movies by title.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (*MoviePage, error) {
	params := pageParams(page)
	params.Set("query", query)

	var resp MoviePage
	if err := c.get(ctx, "/search/movie", params, &resp); err != nil {
		return nil, fmt.Errorf("search movies %q: %w", query, err)
	}
	return &resp, nil
}

// GetMovie retrieves full details for a movie by TMDb ID.
func (c *Client) GetMovie(ctx context.Context, id int) (*MovieDetails, error) {
	if cached, ok := c.details.get(id); ok {
		return cached, nil
	}

	var details MovieDetails
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil, &details); err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}

	c.details.set(id, &details)
	return &details, nil
}

// GetMovieImages returns the posters, backdrops and logos of a movie.
func (c *Client) GetMovieImages(ctx context.Context, id int) (*MovieImages, error) {
	if cached, ok := c.images.get(id); ok {
		return cached, nil
	}

	var images MovieImages
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/images", id), nil, &images); err != nil {
		return nil, fmt.Errorf("get images for %d: %w", id, err)
	}

	c.images.set(id, &images)
	return &images, nil
}

// GetMovieVideos returns the trailers, teasers and clips of a movie.
func (c *Client) GetMovieVideos(ctx context.Context, id int) ([]Video, error) {
	if cached, ok := c.videos.get(id); ok {
		return cached, nil
	}

	var resp videosResponse
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/videos", id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get videos for %d: %w", id, err)
	}
	if resp.Results == nil {
		resp.Results = []Video{}
	}

	c.videos.set(id, resp.Results)
	return resp.Results, nil
}

func pageParams(page int) url.Values {
	if page < 1 {
		page = 1
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}

// get performs an authenticated GET request to the TMDb API and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	q := u.Query()
	q.Set("api_key", c.apiKey)
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return transportError(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("tmdb request failed",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return upstreamError(path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
