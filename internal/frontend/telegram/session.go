package telegram

import (
	"sync"

	"github.com/vadimtrunov/marquee/internal/catalog"
)

// FetcherFactory creates the fetcher, and with it the state store, of a new
// chat session.
type FetcherFactory func() *catalog.Fetcher

// sessionManager manages per-chat state stores and access control.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*catalog.Fetcher
	allowed  map[int64]bool // nil or empty = allow all
}

// newSessionManager creates a session manager.
// If allowedUserIDs is empty, all users are allowed.
func newSessionManager(allowedUserIDs []int64) *sessionManager {
	allowed := make(map[int64]bool, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowed[id] = true
	}
	return &sessionManager{
		sessions: make(map[int64]*catalog.Fetcher),
		allowed:  allowed,
	}
}

// isAllowed checks if a user is authorized to use the bot.
func (sm *sessionManager) isAllowed(userID int64) bool {
	if len(sm.allowed) == 0 {
		return true
	}
	return sm.allowed[userID]
}

// getOrCreate returns the chat's fetcher, creating it with factory on first use.
// If the factory returns nil, the result is not cached so the next call can retry.
func (sm *sessionManager) getOrCreate(chatID int64, factory FetcherFactory) *catalog.Fetcher {
	sm.mu.Lock()
	if f, ok := sm.sessions[chatID]; ok {
		sm.mu.Unlock()
		return f
	}
	sm.mu.Unlock()

	f := factory()
	if f == nil {
		return nil
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	// Another goroutine may have created the session meanwhile.
	if existing, ok := sm.sessions[chatID]; ok {
		return existing
	}
	sm.sessions[chatID] = f
	return f
}

// reset drops a chat's session; the next message starts from an empty store.
func (sm *sessionManager) reset(chatID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, chatID)
}

// len returns the number of live sessions.
func (sm *sessionManager) len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}
