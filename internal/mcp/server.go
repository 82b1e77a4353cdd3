package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vadimtrunov/marquee/internal/catalog"
	"github.com/vadimtrunov/marquee/internal/core"
	"github.com/vadimtrunov/marquee/internal/filter"
	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

var (
	_ core.MovieCatalog = (*tmdb.Client)(nil)
	_ core.Frontend     = (*Server)(nil)
)

// Version is reported to MCP clients during initialization.
var Version = "dev"

// Server exposes the movie catalog and its state store as MCP tools.
// All tool calls share one store, so clear_* and get_state observe the
// results of earlier fetch tools.
type Server struct {
	server  *mcpsdk.Server
	api     core.MovieCatalog
	fetcher *catalog.Fetcher
	store   *catalog.Store
	logger  *slog.Logger
}

// NewServer creates an MCP server with all catalog tools registered.
// api may be nil; fetch tools then report an error.
func NewServer(api core.MovieCatalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "marquee",
			Version: Version,
		},
		&mcpsdk.ServerOptions{Logger: logger},
	)

	store := catalog.NewStore(logger)
	srv := &Server{server: s, api: api, store: store, logger: logger}
	if api != nil {
		srv.fetcher = catalog.NewFetcher(api, store, logger)
	}
	srv.registerTools()
	return srv
}

// ServeStdio runs the MCP server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// Start implements core.Frontend.
func (s *Server) Start(ctx context.Context) error { return s.ServeStdio(ctx) }

// Stop implements core.Frontend. The stdio loop ends with its context.
func (s *Server) Stop(context.Context) error { return nil }

// Name implements core.Frontend.
func (s *Server) Name() string { return "mcp" }

// MCPServer returns the underlying MCP SDK server (for testing).
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.server
}

// Store returns the shared state store.
func (s *Server) Store() *catalog.Store {
	return s.store
}

func (s *Server) registerTools() {
	s.server.AddTool(upcomingMoviesTool(), s.handleUpcomingMovies)
	s.server.AddTool(movieDetailsTool(), s.handleMovieDetails)
	s.server.AddTool(movieVideosTool(), s.handleMovieVideos)
	s.server.AddTool(movieImagesTool(), s.handleMovieImages)
	s.server.AddTool(searchMoviesTool(), s.handleSearchMovies)
	s.server.AddTool(clearDetailsTool(), s.handleClearDetails)
	s.server.AddTool(clearSearchTool(), s.handleClearSearch)
	s.server.AddTool(getStateTool(), s.handleGetState)
}

func upcomingMoviesTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "upcoming_movies",
		Description: "List upcoming theatrical releases from TMDb, one page at a time. Returns the page number, total pages and the movies with poster URLs.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"page":   pageProperty(),
				"filter": filterProperty(),
			},
		},
	}
}

func movieDetailsTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "movie_details",
		Description: "Get detailed information about a movie by its TMDb ID: runtime, genres, tagline, overview and ratings.",
		InputSchema: tmdbIDSchema("The TMDb ID of the movie"),
	}
}

func movieVideosTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "movie_videos",
		Description: "List the trailers, teasers and clips of a movie with YouTube watch links. The preferred trailer is returned separately.",
		InputSchema: tmdbIDSchema("The TMDb ID of the movie"),
	}
}

func movieImagesTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "movie_images",
		Description: "List poster and backdrop image URLs of a movie.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tmdb_id": map[string]any{
					"type":        "integer",
					"description": "The TMDb ID of the movie",
				},
				"size": map[string]any{
					"type":        "string",
					"description": "Image size token (w185, w342, w500, w780, w1280, original) or name (poster-large, backdrop-medium)",
				},
			},
			"required": []any{"tmdb_id"},
		},
	}
}

func searchMoviesTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "search_movies",
		Description: "Search movies by title. Returns matching movies with their TMDb IDs, release dates and ratings.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The movie title to search for",
				},
				"page":   pageProperty(),
				"filter": filterProperty(),
			},
			"required": []any{"query"},
		},
	}
}

func clearDetailsTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "clear_details",
		Description: "Forget the currently loaded movie details and videos.",
		InputSchema: emptySchema(),
	}
}

func clearSearchTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "clear_search",
		Description: "Forget the current search results.",
		InputSchema: emptySchema(),
	}
}

func getStateTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "get_state",
		Description: "Return the full client state: upcoming list, details, videos, search results, loading flags, the last error and pagination.",
		InputSchema: emptySchema(),
	}
}

func pageProperty() map[string]any {
	return map[string]any{
		"type":        "integer",
		"description": "1-based page number, defaults to 1",
		"minimum":     1,
	}
}

func filterProperty() map[string]any {
	return map[string]any{
		"type": "string",
		"description": "Optional expression applied to the returned page, e.g. " +
			"`Rating >= 7 and not Released` or `HasGenre(878)`. Fields: ID, Title, Overview, " +
			"ReleaseDate, Year, Rating, GenreIDs, HasPoster, Released, DaysUntil.",
	}
}

func tmdbIDSchema(desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tmdb_id": map[string]any{
				"type":        "integer",
				"description": desc,
			},
		},
		"required": []any{"tmdb_id"},
	}
}

func emptySchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Tool results.

type pageResult struct {
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Results    []movieResult `json:"results"`
}

type movieResult struct {
	tmdb.Movie
	PosterURL string `json:"poster_url,omitempty"`
}

type videosResult struct {
	Trailer *videoResult  `json:"trailer,omitempty"`
	Videos  []videoResult `json:"videos"`
}

type videoResult struct {
	tmdb.Video
	WatchURL string `json:"watch_url,omitempty"`
}

type imagesResult struct {
	ID        int      `json:"id"`
	Size      string   `json:"size"`
	Posters   []string `json:"posters"`
	Backdrops []string `json:"backdrops"`
}

// Tool handlers parse arguments, run a fetch through the store and
// return JSON text content.

func (s *Server) handleUpcomingMovies(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.fetcher == nil {
		return toolError("TMDb client not configured"), nil
	}

	page, err := extractOptionalInt(req.Params.Arguments, "page", 1)
	if err != nil {
		return toolError(err.Error()), nil
	}
	flt, err := extractFilter(req.Params.Arguments)
	if err != nil {
		return toolError(err.Error()), nil
	}

	if err := s.fetcher.FetchUpcoming(ctx, page); err != nil {
		return s.fetchError(err), nil
	}
	st := s.store.Snapshot()
	movies, err := flt.Apply(st.Upcoming)
	if err != nil {
		return toolError(err.Error()), nil
	}
	return toolJSON(pageResult{
		Page:       st.Page,
		TotalPages: st.TotalPages,
		Results:    s.movieResults(movies),
	})
}

func (s *Server) handleMovieDetails(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.fetcher == nil {
		return toolError("TMDb client not configured"), nil
	}

	id, err := extractIntFromArgs(req.Params.Arguments, "tmdb_id")
	if err != nil {
		return toolError(err.Error()), nil
	}

	if err := s.fetcher.FetchDetails(ctx, id); err != nil {
		return s.fetchError(err), nil
	}
	st := s.store.Snapshot()
	if st.Details == nil {
		// Cleared while the request was in flight.
		return toolError("movie details were cleared"), nil
	}
	return toolJSON(st.Details)
}

func (s *Server) handleMovieVideos(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.fetcher == nil {
		return toolError("TMDb client not configured"), nil
	}

	id, err := extractIntFromArgs(req.Params.Arguments, "tmdb_id")
	if err != nil {
		return toolError(err.Error()), nil
	}

	if err := s.fetcher.FetchVideos(ctx, id); err != nil {
		return s.fetchError(err), nil
	}
	videos := s.store.Snapshot().Videos

	out := videosResult{Videos: make([]videoResult, 0, len(videos))}
	for _, v := range videos {
		out.Videos = append(out.Videos, videoResult{Video: v, WatchURL: v.WatchURL()})
	}
	if t, ok := tmdb.PickTrailer(videos); ok {
		out.Trailer = &videoResult{Video: t, WatchURL: t.WatchURL()}
	}
	return toolJSON(out)
}

func (s *Server) handleMovieImages(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.api == nil {
		return toolError("TMDb client not configured"), nil
	}

	id, err := extractIntFromArgs(req.Params.Arguments, "tmdb_id")
	if err != nil {
		return toolError(err.Error()), nil
	}
	var args struct {
		Size string `json:"size"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	size := tmdb.Original
	if args.Size != "" {
		var ok bool
		if size, ok = tmdb.ParseImageSize(args.Size); !ok {
			return toolError(fmt.Sprintf("unknown image size %q", args.Size)), nil
		}
	}

	images, err := s.api.GetMovieImages(ctx, id)
	if err != nil {
		return toolError(fmt.Sprintf("tmdb get images failed: %v", err)), nil
	}

	out := imagesResult{ID: images.ID, Size: string(size), Posters: []string{}, Backdrops: []string{}}
	for _, img := range images.Posters {
		out.Posters = append(out.Posters, s.api.ImageURL(img.FilePath, size))
	}
	for _, img := range images.Backdrops {
		out.Backdrops = append(out.Backdrops, s.api.ImageURL(img.FilePath, size))
	}
	return toolJSON(out)
}

func (s *Server) handleSearchMovies(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.fetcher == nil {
		return toolError("TMDb client not configured"), nil
	}

	query, err := extractStringFromArgs(req.Params.Arguments, "query")
	if err != nil {
		return toolError(err.Error()), nil
	}
	page, err := extractOptionalInt(req.Params.Arguments, "page", 1)
	if err != nil {
		return toolError(err.Error()), nil
	}
	flt, err := extractFilter(req.Params.Arguments)
	if err != nil {
		return toolError(err.Error()), nil
	}

	if err := s.fetcher.Search(ctx, strings.TrimSpace(query), page); err != nil {
		return s.fetchError(err), nil
	}
	movies, err := flt.Apply(s.store.Snapshot().SearchResults)
	if err != nil {
		return toolError(err.Error()), nil
	}
	return toolJSON(s.movieResults(movies))
}

func (s *Server) handleClearDetails(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	s.store.ClearDetails()
	return toolJSON(s.store.Snapshot())
}

func (s *Server) handleClearSearch(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	s.store.ClearSearch()
	return toolJSON(s.store.Snapshot())
}

func (s *Server) handleGetState(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	return toolJSON(s.store.Snapshot())
}

// Helper functions.

func (s *Server) movieResults(movies []tmdb.Movie) []movieResult {
	out := make([]movieResult, 0, len(movies))
	for _, m := range movies {
		out = append(out, movieResult{Movie: m, PosterURL: s.api.ImageURL(m.PosterPath, tmdb.PosterLarge)})
	}
	return out
}

// fetchError reports the user-facing message recorded in the store along
// with the underlying cause.
func (s *Server) fetchError(err error) *mcpsdk.CallToolResult {
	msg := s.store.Snapshot().Error
	if msg == "" {
		return toolError(err.Error())
	}
	return toolError(fmt.Sprintf("%s (%v)", msg, err))
}

// toolJSON marshals v to JSON and returns it as text content.
func toolJSON(v any) (*mcpsdk.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil
}

// toolError returns a tool result indicating an error.
func toolError(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}

// extractIntFromArgs extracts an integer argument from raw JSON arguments.
func extractIntFromArgs(raw json.RawMessage, key string) (int, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return 0, err
	}

	val, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	return toInt(key, val)
}

// extractOptionalInt is extractIntFromArgs with a default for absent keys.
func extractOptionalInt(raw json.RawMessage, key string, def int) (int, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return 0, err
	}

	val, ok := args[key]
	if !ok || val == nil {
		return def, nil
	}
	return toInt(key, val)
}

// extractStringFromArgs extracts a string argument from raw JSON arguments.
func extractStringFromArgs(raw json.RawMessage, key string) (string, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return "", err
	}

	val, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}

	s, ok := val.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return s, nil
}

// extractFilter compiles the optional "filter" argument. A missing or blank
// filter yields nil, which matches everything.
func extractFilter(raw json.RawMessage) (*filter.Filter, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return nil, err
	}
	val, ok := args["filter"]
	if !ok || val == nil {
		return nil, nil
	}
	expr, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("filter must be a string")
	}
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	return filter.Compile(expr)
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

func toInt(key string, val any) (int, error) {
	switch v := val.(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, val)
	}
}
