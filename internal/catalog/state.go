// Package catalog holds the movie state store and the fetch operations that
// keep it in sync with TMDb. Presentation layers (CLI, TUI, Telegram, MCP)
// read snapshots from a Store and trigger fetches through a Fetcher.
package catalog

import (
	"maps"
	"slices"

	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

// Category is the granularity at which request state is tracked.
type Category string

// Fetch categories.
const (
	CategoryUpcoming Category = "upcoming"
	CategoryDetails  Category = "details"
	CategoryVideos   Category = "videos"
	CategorySearch   Category = "search"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryUpcoming, CategoryDetails, CategoryVideos, CategorySearch}

// Phase is the lifecycle phase of a category's latest request.
type Phase int

// Request phases.
const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseSettled:
		return "settled"
	}
	return "unknown"
}

// RequestState is the phase of the most recently issued request of a category.
// A settled state with a non-empty Err is a failure.
type RequestState struct {
	Phase Phase  `json:"phase"`
	Err   string `json:"error,omitempty"`
	Seq   uint64 `json:"seq"`
}

// Failed reports whether the request settled with an error.
func (r RequestState) Failed() bool {
	return r.Phase == PhaseSettled && r.Err != ""
}

// MovieState is a point-in-time snapshot of the store.
type MovieState struct {
	Upcoming      []tmdb.Movie       `json:"upcoming"`
	Details       *tmdb.MovieDetails `json:"details,omitempty"`
	Videos        []tmdb.Video       `json:"videos"`
	SearchResults []tmdb.Movie       `json:"search_results"`

	// Loading holds true for every category with a request in flight.
	Loading map[Category]bool `json:"loading"`
	// Error is the message of the most recent failure not yet cleared.
	Error string `json:"error,omitempty"`

	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`

	Requests map[Category]RequestState `json:"requests"`

	// Version increases on every mutation; observers can drop older snapshots.
	Version uint64 `json:"version"`
}

func initialState() MovieState {
	requests := make(map[Category]RequestState, len(Categories))
	for _, c := range Categories {
		requests[c] = RequestState{Phase: PhaseIdle}
	}
	return MovieState{
		Upcoming:      []tmdb.Movie{},
		Videos:        []tmdb.Video{},
		SearchResults: []tmdb.Movie{},
		Loading:       map[Category]bool{},
		Page:          1,
		TotalPages:    1,
		Requests:      requests,
	}
}

// IsLoading reports whether a request of category c is in flight.
func (s MovieState) IsLoading(c Category) bool {
	return s.Loading[c]
}

// AnyLoading reports whether any fetch is outstanding. This is the coarse
// single-flag view.
func (s MovieState) AnyLoading() bool {
	for _, v := range s.Loading {
		if v {
			return true
		}
	}
	return false
}

// HasData reports whether the store holds a payload for category c.
func (s MovieState) HasData(c Category) bool {
	switch c {
	case CategoryUpcoming:
		return len(s.Upcoming) > 0
	case CategoryDetails:
		return s.Details != nil
	case CategoryVideos:
		return len(s.Videos) > 0
	case CategorySearch:
		return len(s.SearchResults) > 0
	}
	return false
}

// ShowErrorView reports whether a presentation layer should replace the
// category's content with a full-screen error and retry action: the latest
// request failed and there is no earlier payload to keep showing.
func (s MovieState) ShowErrorView(c Category) bool {
	return s.Requests[c].Failed() && !s.HasData(c)
}

// HasNextPage reports whether another upcoming page exists.
func (s MovieState) HasNextPage() bool {
	return s.Page < s.TotalPages
}

// clone returns a copy that shares no mutable containers with s.
func (s MovieState) clone() MovieState {
	out := s
	out.Upcoming = cloneMovies(s.Upcoming)
	out.SearchResults = cloneMovies(s.SearchResults)
	out.Videos = slices.Clone(s.Videos)
	if s.Details != nil {
		d := *s.Details
		d.Genres = slices.Clone(s.Details.Genres)
		out.Details = &d
	}
	out.Loading = maps.Clone(s.Loading)
	out.Requests = maps.Clone(s.Requests)
	return out
}

func cloneMovies(in []tmdb.Movie) []tmdb.Movie {
	out := make([]tmdb.Movie, len(in))
	for i, m := range in {
		m.GenreIDs = slices.Clone(m.GenreIDs)
		out[i] = m
	}
	return out
}
