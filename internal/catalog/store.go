package catalog

import (
	"log/slog"
	"sync"

	"github.com/vadimtrunov/marquee/internal/metadata/tmdb"
)

// Store is the shared movie state container. It is safe for concurrent use;
// every mutation is applied atomically and observers receive a copy.
//
// Each category carries a sequence number that grows with every issued
// request. A settlement is applied only if its sequence is the latest issued
// one, so an older response arriving after a newer one is dropped, and a
// clear action invalidates whatever was still in flight.
type Store struct {
	mu     sync.Mutex
	state  MovieState
	issued map[Category]uint64
	// errFrom is the category whose failure set state.Error.
	errFrom Category

	subMu   sync.Mutex
	subs    map[int]func(MovieState)
	nextSub int

	logger *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		state:  initialState(),
		issued: make(map[Category]uint64, len(Categories)),
		subs:   make(map[int]func(MovieState)),
		logger: logger,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() MovieState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to be called with a snapshot after every mutation.
// fn runs on the mutating goroutine, outside the store lock; snapshots from
// concurrent mutations may arrive out of order, compare Version to discard
// older ones. The returned func unregisters fn.
func (s *Store) Subscribe(fn func(MovieState)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// ClearDetails drops the movie details and videos, and invalidates any
// details or videos request still in flight.
func (s *Store) ClearDetails() {
	s.update(func(st *MovieState) {
		st.Details = nil
		st.Videos = []tmdb.Video{}
		s.invalidate(st, CategoryDetails)
		s.invalidate(st, CategoryVideos)
	})
}

// ClearSearch drops the search results and invalidates an in-flight search.
func (s *Store) ClearSearch() {
	s.update(func(st *MovieState) {
		st.SearchResults = []tmdb.Movie{}
		s.invalidate(st, CategorySearch)
	})
}

// ResetError clears the current error message.
func (s *Store) ResetError() {
	s.update(func(st *MovieState) {
		st.Error = ""
		s.errFrom = ""
	})
}

// begin issues a new request for c and marks it pending.
func (s *Store) begin(c Category) uint64 {
	var seq uint64
	s.update(func(st *MovieState) {
		s.issued[c]++
		seq = s.issued[c]
		st.Loading[c] = true
		st.Requests[c] = RequestState{Phase: PhasePending, Seq: seq}
		if s.errFrom == c {
			st.Error = ""
			s.errFrom = ""
		}
	})
	return seq
}

// settle applies a successful response for c if seq is still current.
func (s *Store) settle(c Category, seq uint64, apply func(st *MovieState)) bool {
	return s.updateIf(func(st *MovieState) bool {
		if !s.current(c, seq) {
			return false
		}
		apply(st)
		delete(st.Loading, c)
		st.Requests[c] = RequestState{Phase: PhaseSettled, Seq: seq}
		return true
	})
}

// fail records a failure for c if seq is still current. Payloads are kept.
func (s *Store) fail(c Category, seq uint64, msg string) bool {
	return s.updateIf(func(st *MovieState) bool {
		if !s.current(c, seq) {
			return false
		}
		delete(st.Loading, c)
		st.Requests[c] = RequestState{Phase: PhaseSettled, Err: msg, Seq: seq}
		st.Error = msg
		s.errFrom = c
		return true
	})
}

// abandon returns c to idle when its current request was canceled by the caller.
func (s *Store) abandon(c Category, seq uint64) bool {
	return s.updateIf(func(st *MovieState) bool {
		if !s.current(c, seq) {
			return false
		}
		delete(st.Loading, c)
		st.Requests[c] = RequestState{Phase: PhaseIdle, Seq: seq}
		return true
	})
}

func (s *Store) settleUpcoming(seq uint64, page *tmdb.MoviePage) bool {
	return s.settle(CategoryUpcoming, seq, func(st *MovieState) {
		st.Upcoming = nonNilMovies(page.Results)
		st.Page = max(page.Page, 1)
		st.TotalPages = max(page.TotalPages, 1)
	})
}

func (s *Store) settleDetails(seq uint64, details *tmdb.MovieDetails) bool {
	return s.settle(CategoryDetails, seq, func(st *MovieState) {
		st.Details = details
	})
}

func (s *Store) settleVideos(seq uint64, videos []tmdb.Video) bool {
	return s.settle(CategoryVideos, seq, func(st *MovieState) {
		if videos == nil {
			videos = []tmdb.Video{}
		}
		st.Videos = videos
	})
}

func (s *Store) settleSearch(seq uint64, page *tmdb.MoviePage) bool {
	return s.settle(CategorySearch, seq, func(st *MovieState) {
		st.SearchResults = nonNilMovies(page.Results)
	})
}

// current must be called with s.mu held.
func (s *Store) current(c Category, seq uint64) bool {
	if seq != s.issued[c] {
		s.logger.Debug("dropping stale settlement",
			slog.String("category", string(c)),
			slog.Uint64("seq", seq),
			slog.Uint64("latest", s.issued[c]),
		)
		return false
	}
	return true
}

// invalidate must be called with s.mu held.
func (s *Store) invalidate(st *MovieState, c Category) {
	s.issued[c]++
	delete(st.Loading, c)
	st.Requests[c] = RequestState{Phase: PhaseIdle, Seq: s.issued[c]}
	if s.errFrom == c {
		st.Error = ""
		s.errFrom = ""
	}
}

func (s *Store) update(fn func(st *MovieState)) {
	s.updateIf(func(st *MovieState) bool {
		fn(st)
		return true
	})
}

// updateIf runs fn under the lock and notifies observers if fn reports a change.
func (s *Store) updateIf(fn func(st *MovieState) bool) bool {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return false
	}
	s.state.Version++
	snap := s.state.clone()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

func (s *Store) notify(snap MovieState) {
	s.subMu.Lock()
	fns := make([]func(MovieState), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		// Each observer gets its own copy.
		fn(snap.clone())
	}
}

func nonNilMovies(in []tmdb.Movie) []tmdb.Movie {
	if in == nil {
		return []tmdb.Movie{}
	}
	return in
}
