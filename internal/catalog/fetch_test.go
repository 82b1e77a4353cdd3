package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type searchCall struct {
	query string
	page  int
}

// fakeAPI implements MovieAPI with overridable handlers.
type fakeAPI struct {
	upcoming func(ctx context.Context, page int) (*tmdb.MoviePage, error)
	movie    func(ctx context.Context, id int) (*tmdb.MovieDetails, error)
	videos   func(ctx context.Context, id int) ([]tmdb.Video, error)
	search   func(ctx context.Context, query string, page int) (*tmdb.MoviePage, error)

	mu       sync.Mutex
	searches []searchCall
}

func (f *fakeAPI) GetUpcoming(ctx context.Context, page int) (*tmdb.MoviePage, error) {
	return f.upcoming(ctx, page)
}

func (f *fakeAPI) GetMovie(ctx context.Context, id int) (*tmdb.MovieDetails, error) {
	return f.movie(ctx, id)
}

func (f *fakeAPI) GetMovieVideos(ctx context.Context, id int) ([]tmdb.Video, error) {
	return f.videos(ctx, id)
}

func (f *fakeAPI) SearchMovies(ctx context.Context, query string, page int) (*tmdb.MoviePage, error) {
	f.mu.Lock()
	f.searches = append(f.searches, searchCall{query: query, page: page})
	f.mu.Unlock()
	if f.search == nil {
		return &tmdb.MoviePage{Page: page, Results: []tmdb.Movie{{ID: 1, Title: query}}}, nil
	}
	return f.search(ctx, query, page)
}

func (f *fakeAPI) searchCalls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.searches...)
}

func newTestFetcher(api *fakeAPI) *Fetcher {
	return NewFetcher(api, NewStore(discardLogger), discardLogger)
}

func upstream(status int, msg string) error {
	return &tmdb.RemoteRequestError{Kind: tmdb.KindUpstream, StatusCode: status, Message: msg}
}

func TestFetchUpcoming_PopulatesPage(t *testing.T) {
	for _, page := range []int{1, 2, 5} {
		api := &fakeAPI{upcoming: func(_ context.Context, p int) (*tmdb.MoviePage, error) {
			return &tmdb.MoviePage{
				Page:       p,
				TotalPages: 9,
				Results:    []tmdb.Movie{{ID: p * 10}, {ID: p*10 + 1}},
			}, nil
		}}
		f := newTestFetcher(api)

		require.NoError(t, f.FetchUpcoming(context.Background(), page))

		st := f.Store().Snapshot()
		require.Len(t, st.Upcoming, 2)
		assert.Equal(t, page*10, st.Upcoming[0].ID)
		assert.Equal(t, page, st.Page)
		assert.Equal(t, 9, st.TotalPages)
		assert.False(t, st.AnyLoading())
		assert.Equal(t, PhaseSettled, st.Requests[CategoryUpcoming].Phase)
		assert.Empty(t, st.Error)
	}
}

func TestFetchUpcoming_FailureKeepsPreviousList(t *testing.T) {
	fail := false
	api := &fakeAPI{upcoming: func(context.Context, int) (*tmdb.MoviePage, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return &tmdb.MoviePage{Page: 1, TotalPages: 3, Results: []tmdb.Movie{{ID: 1}}}, nil
	}}
	f := newTestFetcher(api)
	require.NoError(t, f.FetchUpcoming(context.Background(), 1))

	fail = true
	err := f.FetchUpcoming(context.Background(), 2)
	require.Error(t, err)

	st := f.Store().Snapshot()
	assert.Len(t, st.Upcoming, 1, "list on screen must survive a failed refresh")
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, MsgUpcomingFailed, st.Error)
	assert.True(t, st.Requests[CategoryUpcoming].Failed())
	assert.False(t, st.ShowErrorView(CategoryUpcoming))
}

func TestFetchDetails_FailThenRetry(t *testing.T) {
	fail := true
	api := &fakeAPI{movie: func(_ context.Context, id int) (*tmdb.MovieDetails, error) {
		if fail {
			return nil, upstream(500, "")
		}
		return &tmdb.MovieDetails{ID: id, Title: "Fight Club"}, nil
	}}
	f := newTestFetcher(api)

	require.Error(t, f.FetchDetails(context.Background(), 550))
	st := f.Store().Snapshot()
	assert.NotEmpty(t, st.Error)
	assert.Equal(t, MsgDetailsFailed, st.Error)
	assert.Nil(t, st.Details)
	assert.True(t, st.ShowErrorView(CategoryDetails))

	fail = false
	require.NoError(t, f.FetchDetails(context.Background(), 550))
	st = f.Store().Snapshot()
	assert.Empty(t, st.Error)
	require.NotNil(t, st.Details)
	assert.Equal(t, "Fight Club", st.Details.Title)
	assert.False(t, st.ShowErrorView(CategoryDetails))
}

func TestFetch_UpstreamMessagePreferred(t *testing.T) {
	api := &fakeAPI{search: func(context.Context, string, int) (*tmdb.MoviePage, error) {
		return nil, upstream(401, "Invalid API key")
	}}
	f := newTestFetcher(api)

	err := f.Search(context.Background(), "batman", 1)
	require.Error(t, err)

	var rerr *tmdb.RemoteRequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "Invalid API key", f.Store().Snapshot().Error)
}

func TestFetch_DefaultMessages(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	api := &fakeAPI{
		upcoming: func(context.Context, int) (*tmdb.MoviePage, error) { return nil, boom },
		movie:    func(context.Context, int) (*tmdb.MovieDetails, error) { return nil, boom },
		videos:   func(context.Context, int) ([]tmdb.Video, error) { return nil, boom },
		search:   func(context.Context, string, int) (*tmdb.MoviePage, error) { return nil, boom },
	}
	f := newTestFetcher(api)
	ctx := context.Background()

	tests := []struct {
		op   Op
		want string
	}{
		{Upcoming(1), MsgUpcomingFailed},
		{Details(1), MsgDetailsFailed},
		{Videos(1), MsgVideosFailed},
		{SearchQuery("x", 1), MsgSearchFailed},
	}
	for _, tt := range tests {
		require.Error(t, f.Run(ctx, tt.op))
		assert.Equal(t, tt.want, f.Store().Snapshot().Error)
	}
}

func TestFetch_PendingClearsCategoryError(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	calls := 0
	api := &fakeAPI{movie: func(_ context.Context, id int) (*tmdb.MovieDetails, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		close(started)
		<-release
		return &tmdb.MovieDetails{ID: id}, nil
	}}
	f := newTestFetcher(api)
	require.Error(t, f.FetchDetails(context.Background(), 1))
	require.NotEmpty(t, f.Store().Snapshot().Error)

	done := f.Dispatch(context.Background(), Details(1))
	<-started

	st := f.Store().Snapshot()
	assert.Empty(t, st.Error, "pending must clear the category's prior error")
	assert.True(t, st.IsLoading(CategoryDetails))
	assert.Equal(t, PhasePending, st.Requests[CategoryDetails].Phase)

	close(release)
	require.NoError(t, <-done)
}

func TestFetch_OtherCategoryErrorSurvivesPending(t *testing.T) {
	api := &fakeAPI{
		videos: func(context.Context, int) ([]tmdb.Video, error) { return nil, errors.New("boom") },
		upcoming: func(context.Context, int) (*tmdb.MoviePage, error) {
			return &tmdb.MoviePage{Page: 1, TotalPages: 1}, nil
		},
	}
	f := newTestFetcher(api)
	require.Error(t, f.FetchVideos(context.Background(), 1))
	require.NoError(t, f.FetchUpcoming(context.Background(), 1))

	assert.Equal(t, MsgVideosFailed, f.Store().Snapshot().Error)
}

func TestFetch_OutOfOrderSettlementDropped(t *testing.T) {
	slowRelease := make(chan struct{})
	slowStarted := make(chan struct{})
	api := &fakeAPI{search: func(_ context.Context, q string, _ int) (*tmdb.MoviePage, error) {
		if q == "old" {
			close(slowStarted)
			<-slowRelease
		}
		return &tmdb.MoviePage{Results: []tmdb.Movie{{Title: q}}}, nil
	}}
	f := newTestFetcher(api)

	oldDone := f.Dispatch(context.Background(), SearchQuery("old", 1))
	<-slowStarted
	require.NoError(t, f.Search(context.Background(), "new", 1))

	close(slowRelease)
	require.NoError(t, <-oldDone)

	st := f.Store().Snapshot()
	require.Len(t, st.SearchResults, 1)
	assert.Equal(t, "new", st.SearchResults[0].Title, "older response must not overwrite newer one")
	assert.False(t, st.IsLoading(CategorySearch))
}

func TestFetch_PerCategoryLoading(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{
		movie: func(_ context.Context, id int) (*tmdb.MovieDetails, error) {
			return &tmdb.MovieDetails{ID: id}, nil
		},
		videos: func(context.Context, int) ([]tmdb.Video, error) {
			close(started)
			<-release
			return []tmdb.Video{{Key: "k"}}, nil
		},
	}
	f := newTestFetcher(api)

	videosDone := f.Dispatch(context.Background(), Videos(1))
	<-started
	require.NoError(t, f.FetchDetails(context.Background(), 1))

	st := f.Store().Snapshot()
	assert.False(t, st.IsLoading(CategoryDetails))
	assert.True(t, st.IsLoading(CategoryVideos), "details completion must not clear the videos flag")
	assert.True(t, st.AnyLoading())

	close(release)
	require.NoError(t, <-videosDone)
	assert.False(t, f.Store().Snapshot().AnyLoading())
}

func TestFetchDetailsAndVideos(t *testing.T) {
	api := &fakeAPI{
		movie: func(_ context.Context, id int) (*tmdb.MovieDetails, error) {
			return &tmdb.MovieDetails{ID: id, Title: "Dune"}, nil
		},
		videos: func(context.Context, int) ([]tmdb.Video, error) {
			return []tmdb.Video{{Key: "abc", Site: "YouTube", Type: "Trailer"}}, nil
		},
	}
	f := newTestFetcher(api)

	require.NoError(t, f.Run(context.Background(), DetailsAndVideos(438631)))

	st := f.Store().Snapshot()
	require.NotNil(t, st.Details)
	assert.Equal(t, 438631, st.Details.ID)
	assert.Len(t, st.Videos, 1)
}

func TestFetchDetailsAndVideos_OneFails(t *testing.T) {
	api := &fakeAPI{
		movie: func(_ context.Context, id int) (*tmdb.MovieDetails, error) {
			return &tmdb.MovieDetails{ID: id}, nil
		},
		videos: func(context.Context, int) ([]tmdb.Video, error) { return nil, errors.New("boom") },
	}
	f := newTestFetcher(api)

	require.Error(t, f.FetchDetailsAndVideos(context.Background(), 1))

	st := f.Store().Snapshot()
	assert.NotNil(t, st.Details, "details must still be applied")
	assert.Equal(t, MsgVideosFailed, st.Error)
}

func TestFetch_CanceledLeavesNoError(t *testing.T) {
	api := &fakeAPI{movie: func(ctx context.Context, _ int) (*tmdb.MovieDetails, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	f := newTestFetcher(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := f.Dispatch(ctx, Details(1))
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	st := f.Store().Snapshot()
	assert.Empty(t, st.Error)
	assert.False(t, st.IsLoading(CategoryDetails))
	assert.Equal(t, PhaseIdle, st.Requests[CategoryDetails].Phase)
}

func TestFetch_ConcurrentCallsNotDeduplicated(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	api := &fakeAPI{upcoming: func(context.Context, int) (*tmdb.MoviePage, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return &tmdb.MoviePage{Page: 1, TotalPages: 1}, nil
	}}
	f := newTestFetcher(api)

	a := f.Dispatch(context.Background(), Upcoming(1))
	b := f.Dispatch(context.Background(), Upcoming(1))
	require.NoError(t, <-a)
	require.NoError(t, <-b)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}
