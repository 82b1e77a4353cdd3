package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

func TestStore_InitialState(t *testing.T) {
	st := NewStore(discardLogger).Snapshot()

	assert.Empty(t, st.Upcoming)
	assert.NotNil(t, st.Upcoming)
	assert.Nil(t, st.Details)
	assert.Empty(t, st.Videos)
	assert.Empty(t, st.SearchResults)
	assert.False(t, st.AnyLoading())
	assert.Empty(t, st.Error)
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, 1, st.TotalPages)
	for _, c := range Categories {
		assert.Equal(t, PhaseIdle, st.Requests[c].Phase, c)
	}
}

func TestStore_ClearDetailsClearsVideos(t *testing.T) {
	api := &fakeAPI{
		movie: func(_ context.Context, id int) (*tmdb.MovieDetails, error) {
			return &tmdb.MovieDetails{ID: id}, nil
		},
		videos: func(context.Context, int) ([]tmdb.Video, error) {
			return []tmdb.Video{{Key: "a"}, {Key: "b"}}, nil
		},
	}
	f := newTestFetcher(api)
	require.NoError(t, f.FetchDetailsAndVideos(context.Background(), 42))
	require.NotNil(t, f.Store().Snapshot().Details)

	f.Store().ClearDetails()

	st := f.Store().Snapshot()
	assert.Nil(t, st.Details)
	assert.Empty(t, st.Videos)
	assert.Equal(t, PhaseIdle, st.Requests[CategoryDetails].Phase)
	assert.Equal(t, PhaseIdle, st.Requests[CategoryVideos].Phase)
}

func TestStore_ClearDetailsDropsLateResponse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{movie: func(_ context.Context, id int) (*tmdb.MovieDetails, error) {
		close(started)
		<-release
		return &tmdb.MovieDetails{ID: id}, nil
	}}
	f := newTestFetcher(api)

	done := f.Dispatch(context.Background(), Details(7))
	<-started
	f.Store().ClearDetails() // screen left

	close(release)
	require.NoError(t, <-done)

	st := f.Store().Snapshot()
	assert.Nil(t, st.Details, "late response must not repopulate a cleared screen")
	assert.False(t, st.IsLoading(CategoryDetails))
}

func TestStore_ClearSearch(t *testing.T) {
	f := newTestFetcher(&fakeAPI{})
	require.NoError(t, f.Search(context.Background(), "batman", 1))
	require.Len(t, f.Store().Snapshot().SearchResults, 1)

	f.Store().ClearSearch()
	assert.Empty(t, f.Store().Snapshot().SearchResults)
}

func TestStore_ResetError(t *testing.T) {
	s := NewStore(discardLogger)
	seq := s.begin(CategoryUpcoming)
	require.True(t, s.fail(CategoryUpcoming, seq, "nope"))
	require.Equal(t, "nope", s.Snapshot().Error)

	s.ResetError()
	assert.Empty(t, s.Snapshot().Error)
}

func TestStore_StaleFailureIgnored(t *testing.T) {
	s := NewStore(discardLogger)
	first := s.begin(CategorySearch)
	second := s.begin(CategorySearch)

	assert.False(t, s.fail(CategorySearch, first, "old failure"))
	assert.True(t, s.settleSearch(second, &tmdb.MoviePage{Results: []tmdb.Movie{{ID: 1}}}))

	st := s.Snapshot()
	assert.Empty(t, st.Error)
	assert.Len(t, st.SearchResults, 1)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore(discardLogger)
	seq := s.begin(CategoryUpcoming)
	s.settleUpcoming(seq, &tmdb.MoviePage{Page: 1, TotalPages: 1, Results: []tmdb.Movie{{ID: 1, GenreIDs: []int{18}}}})

	snap := s.Snapshot()
	snap.Upcoming[0].ID = 99
	snap.Upcoming[0].GenreIDs[0] = 99
	snap.Loading[CategorySearch] = true

	again := s.Snapshot()
	assert.Equal(t, 1, again.Upcoming[0].ID)
	assert.Equal(t, 18, again.Upcoming[0].GenreIDs[0])
	assert.False(t, again.IsLoading(CategorySearch))
}

func TestStore_SubscribeReceivesSnapshots(t *testing.T) {
	s := NewStore(discardLogger)

	var mu sync.Mutex
	var versions []uint64
	unsubscribe := s.Subscribe(func(st MovieState) {
		mu.Lock()
		versions = append(versions, st.Version)
		mu.Unlock()
	})

	s.ResetError()
	s.ClearSearch()
	unsubscribe()
	s.ClearDetails()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, versions)
}

func TestStore_HasNextPage(t *testing.T) {
	s := NewStore(discardLogger)
	seq := s.begin(CategoryUpcoming)
	s.settleUpcoming(seq, &tmdb.MoviePage{Page: 2, TotalPages: 3})
	assert.True(t, s.Snapshot().HasNextPage())

	seq = s.begin(CategoryUpcoming)
	s.settleUpcoming(seq, &tmdb.MoviePage{Page: 3, TotalPages: 3})
	assert.False(t, s.Snapshot().HasNextPage())
}
