package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

// Fallback messages used when the upstream gives no message of its own.
const (
	MsgUpcomingFailed = "Failed to fetch movies"
	MsgDetailsFailed  = "Failed to fetch movie details"
	MsgVideosFailed   = "Failed to fetch videos"
	MsgSearchFailed   = "Search failed"
)

// MovieAPI is the subset of the TMDb client the fetch operations need.
type MovieAPI interface {
	GetUpcoming(ctx context.Context, page int) (*tmdb.MoviePage, error)
	GetMovie(ctx context.Context, id int) (*tmdb.MovieDetails, error)
	GetMovieVideos(ctx context.Context, id int) ([]tmdb.Video, error)
	SearchMovies(ctx context.Context, query string, page int) (*tmdb.MoviePage, error)
}

// Compile-time interface check.
var _ MovieAPI = (*tmdb.Client)(nil)

// Fetcher runs fetch operations against the API and records their lifecycle
// in a Store. Concurrent calls for the same category are not deduplicated;
// the most recently issued one wins.
type Fetcher struct {
	api    MovieAPI
	store  *Store
	logger *slog.Logger
}

// NewFetcher creates a Fetcher writing into store.
func NewFetcher(api MovieAPI, store *Store, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{api: api, store: store, logger: logger}
}

// Store returns the store the fetcher writes into.
func (f *Fetcher) Store() *Store { return f.store }

// FetchUpcoming loads one page of upcoming movies. page < 1 is treated as 1.
func (f *Fetcher) FetchUpcoming(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	seq := f.store.begin(CategoryUpcoming)
	resp, err := f.api.GetUpcoming(ctx, page)
	if err != nil {
		return f.failed(CategoryUpcoming, seq, err, MsgUpcomingFailed)
	}
	f.store.settleUpcoming(seq, resp)
	return nil
}

// FetchDetails loads the details of movie id.
func (f *Fetcher) FetchDetails(ctx context.Context, id int) error {
	seq := f.store.begin(CategoryDetails)
	details, err := f.api.GetMovie(ctx, id)
	if err != nil {
		return f.failed(CategoryDetails, seq, err, MsgDetailsFailed)
	}
	f.store.settleDetails(seq, details)
	return nil
}

// FetchVideos loads the videos of movie id.
func (f *Fetcher) FetchVideos(ctx context.Context, id int) error {
	seq := f.store.begin(CategoryVideos)
	videos, err := f.api.GetMovieVideos(ctx, id)
	if err != nil {
		return f.failed(CategoryVideos, seq, err, MsgVideosFailed)
	}
	f.store.settleVideos(seq, videos)
	return nil
}

// Search runs a movie search. The caller owns debouncing, see SearchSession.
func (f *Fetcher) Search(ctx context.Context, query string, page int) error {
	if page < 1 {
		page = 1
	}
	seq := f.store.begin(CategorySearch)
	resp, err := f.api.SearchMovies(ctx, query, page)
	if err != nil {
		return f.failed(CategorySearch, seq, err, MsgSearchFailed)
	}
	f.store.settleSearch(seq, resp)
	return nil
}

// FetchDetailsAndVideos loads details and videos concurrently, as a detail
// screen does on entry. A failure of one does not cancel the other.
func (f *Fetcher) FetchDetailsAndVideos(ctx context.Context, id int) error {
	var g errgroup.Group
	g.Go(func() error { return f.FetchDetails(ctx, id) })
	g.Go(func() error { return f.FetchVideos(ctx, id) })
	return g.Wait()
}

// failed records err in the store and returns it wrapped with the category.
func (f *Fetcher) failed(c Category, seq uint64, err error, fallback string) error {
	if errors.Is(err, context.Canceled) {
		f.store.abandon(c, seq)
		return err
	}

	msg := tmdb.UpstreamMessage(err)
	if msg == "" {
		msg = fallback
	}
	if f.store.fail(c, seq, msg) {
		f.logger.Warn("fetch failed",
			slog.String("category", string(c)),
			slog.String("error", err.Error()),
		)
	}
	return fmt.Errorf("%s: %w", c, err)
}

// Op is a fetch operation bound to its arguments.
type Op func(ctx context.Context, f *Fetcher) error

// Upcoming binds FetchUpcoming.
func Upcoming(page int) Op {
	return func(ctx context.Context, f *Fetcher) error { return f.FetchUpcoming(ctx, page) }
}

// Details binds FetchDetails.
func Details(id int) Op {
	return func(ctx context.Context, f *Fetcher) error { return f.FetchDetails(ctx, id) }
}

// Videos binds FetchVideos.
func Videos(id int) Op {
	return func(ctx context.Context, f *Fetcher) error { return f.FetchVideos(ctx, id) }
}

// DetailsAndVideos binds FetchDetailsAndVideos.
func DetailsAndVideos(id int) Op {
	return func(ctx context.Context, f *Fetcher) error { return f.FetchDetailsAndVideos(ctx, id) }
}

// SearchQuery binds Search.
func SearchQuery(query string, page int) Op {
	return func(ctx context.Context, f *Fetcher) error { return f.Search(ctx, query, page) }
}

// Run executes op synchronously.
func (f *Fetcher) Run(ctx context.Context, op Op) error {
	return op(ctx, f)
}

// Dispatch starts op in the background and returns immediately. The channel
// receives the operation's result and is then closed. The result is already
// reflected in the store by the time it is sent.
func (f *Fetcher) Dispatch(ctx context.Context, op Op) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- op(ctx, f)
	}()
	return done
}
