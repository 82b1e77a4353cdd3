package core

import (
	"context"

	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

// MovieCatalog is the remote movie database used by every frontend
type MovieCatalog interface {
	// GetUpcoming returns one page of upcoming releases
	GetUpcoming(ctx context.Context, page int) (*tmdb.MoviePage, error)

	// GetMovie returns the full details of a movie
	GetMovie(ctx context.Context, id int) (*tmdb.MovieDetails, error)

	// GetMovieVideos returns trailers, teasers and clips of a movie
	GetMovieVideos(ctx context.Context, id int) ([]tmdb.Video, error)

	// GetMovieImages returns posters, backdrops and logos of a movie
	GetMovieImages(ctx context.Context, id int) (*tmdb.MovieImages, error)

	// SearchMovies searches movies by title
	SearchMovies(ctx context.Context, query string, page int) (*tmdb.MoviePage, error)

	// ImageURL builds the public URL of an image path at the given size
	ImageURL(path string, size tmdb.ImageSize) string
}

// Frontend defines the interface for user-facing frontends (Telegram, MCP)
type Frontend interface {
	// Start runs the frontend until ctx is canceled
	Start(ctx context.Context) error

	// Stop stops the frontend
	Stop(ctx context.Context) error

	// Name returns the frontend name (e.g., "telegram", "mcp")
	Name() string
}
