package client

import "sync"

// TokenStore is the boundary to wherever the bearer token actually lives
// (keychain, config file, a login flow). The client only reads it to build
// the connect URL; absence of a token means guest mode.
type TokenStore interface {
	// Token returns the current bearer token, ok reports presence.
	Token() (token string, ok bool)
	// SetToken stores a new bearer token.
	SetToken(token string)
	// Clear removes the stored token.
	Clear()
}

// MemoryTokenStore is a process-local TokenStore.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns a store holding the given token, which may
// be empty.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

// Token implements TokenStore.
func (s *MemoryTokenStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// SetToken implements TokenStore.
func (s *MemoryTokenStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear implements TokenStore.
func (s *MemoryTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
