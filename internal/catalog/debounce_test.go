package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 40 * time.Millisecond

func TestSearchSession_FiresOnceAfterInterval(t *testing.T) {
	api := &fakeAPI{}
	f := newTestFetcher(api)
	s := NewSearchSession(context.Background(), f, testDebounce)
	defer s.Close()

	s.Input("batman")
	assert.True(t, s.Pending())
	assert.Empty(t, api.searchCalls(), "nothing fires before the interval")

	require.Eventually(t, func() bool { return len(api.searchCalls()) == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDebounce)

	calls := api.searchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, searchCall{query: "batman", page: 1}, calls[0])
	assert.False(t, s.Pending())
	assert.Len(t, f.Store().Snapshot().SearchResults, 1)
}

func TestSearchSession_KeystrokesCollapse(t *testing.T) {
	api := &fakeAPI{}
	f := newTestFetcher(api)
	s := NewSearchSession(context.Background(), f, testDebounce)
	defer s.Close()

	s.Input("bat")
	s.Input("batm")
	s.Input("batman")

	require.Eventually(t, func() bool { return len(api.searchCalls()) == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDebounce)

	calls := api.searchCalls()
	require.Len(t, calls, 1, "only the final query fires")
	assert.Equal(t, "batman", calls[0].query)
}

func TestSearchSession_EmptyQueryClearsImmediately(t *testing.T) {
	api := &fakeAPI{}
	f := newTestFetcher(api)
	require.NoError(t, f.Search(context.Background(), "batman", 1))
	require.NotEmpty(t, f.Store().Snapshot().SearchResults)

	s := NewSearchSession(context.Background(), f, time.Hour)
	defer s.Close()

	s.Input("   ")
	assert.Empty(t, f.Store().Snapshot().SearchResults, "cleared without waiting for the interval")
	assert.False(t, s.Pending())
}

func TestSearchSession_EmptyCancelsPending(t *testing.T) {
	api := &fakeAPI{}
	f := newTestFetcher(api)
	s := NewSearchSession(context.Background(), f, testDebounce)
	defer s.Close()

	s.Input("batman")
	s.Input("")
	time.Sleep(3 * testDebounce)

	assert.Empty(t, api.searchCalls())
}

func TestSearchSession_CloseCancelsPending(t *testing.T) {
	api := &fakeAPI{}
	f := newTestFetcher(api)
	s := NewSearchSession(context.Background(), f, testDebounce)

	s.Input("batman")
	s.Close()
	time.Sleep(3 * testDebounce)

	assert.Empty(t, api.searchCalls())
	assert.False(t, s.Pending())

	s.Input("again") // ignored after close
	assert.False(t, s.Pending())
}

func TestSearchSession_DefaultInterval(t *testing.T) {
	s := NewSearchSession(context.Background(), newTestFetcher(&fakeAPI{}), 0)
	defer s.Close()
	assert.Equal(t, DefaultDebounce, s.interval)
	assert.Equal(t, 500*time.Millisecond, DefaultDebounce)
}
