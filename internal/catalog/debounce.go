package catalog

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultDebounce is how long search input must stay unchanged before a
// search request is issued.
const DefaultDebounce = 500 * time.Millisecond

// SearchSession debounces search input for one input field. Each Input call
// replaces the pending search, so at most one is ever scheduled. An empty
// query clears the results immediately.
type SearchSession struct {
	fetcher  *Fetcher
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	query  string
	closed bool
}

// NewSearchSession creates a session bound to ctx. interval <= 0 selects
// DefaultDebounce.
func NewSearchSession(ctx context.Context, f *Fetcher, interval time.Duration) *SearchSession {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(ctx)
	return &SearchSession{
		fetcher:  f,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Input records the current content of the search field.
func (s *SearchSession) Input(query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.gen++
	s.query = query

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		s.mu.Unlock()
		s.fetcher.Store().ClearSearch()
		return
	}

	gen := s.gen
	s.timer = time.AfterFunc(s.interval, func() { s.fire(gen, trimmed) })
	s.mu.Unlock()
}

// Query returns the last input.
func (s *SearchSession) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Pending reports whether a search is scheduled but has not fired yet.
func (s *SearchSession) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Close cancels the pending search and any search still in flight, and
// clears the results.
func (s *SearchSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopLocked()
	s.mu.Unlock()

	s.cancel()
	s.fetcher.Store().ClearSearch()
}

func (s *SearchSession) fire(gen uint64, query string) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	_ = s.fetcher.Search(s.ctx, query, 1)
}

func (s *SearchSession) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
