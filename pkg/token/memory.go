package token

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the pair in process memory.
// It is safe for concurrent use and suitable for short lived sessions and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	pair Pair
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AccessToken returns the current access token.
func (s *MemoryStore) AccessToken(_ context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.Access
}

// RefreshToken returns the current refresh token.
func (s *MemoryStore) RefreshToken(_ context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.Refresh
}

// Tokens returns the current pair.
func (s *MemoryStore) Tokens(_ context.Context) (Pair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, !s.pair.IsZero()
}

// SetTokens replaces the stored pair.
func (s *MemoryStore) SetTokens(_ context.Context, pair Pair) error {
	if err := validate(pair); err != nil {
		return err
	}

	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()
	return nil
}

// Clear removes the stored pair.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.pair = Pair{}
	s.mu.Unlock()
	return nil
}
