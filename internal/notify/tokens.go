package notify

import (
	"context"
	"sync"
	"time"

	"quicksend/internal/domain"
)

type tokenEntry struct {
	userID  domain.UserID
	expires time.Time
}

// TokenStore keeps one-time socket tokens until they are redeemed or expire.
type TokenStore struct {
	mu      sync.Mutex
	entries map[string]tokenEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewTokenStore(ttl time.Duration) *TokenStore {
	return &TokenStore{entries: make(map[string]tokenEntry), ttl: ttl, now: time.Now}
}

// WithClock replaces the store's time source.
func (s *TokenStore) WithClock(now func() time.Time) *TokenStore {
	s.now = now
	return s
}

func (s *TokenStore) TTL() time.Duration { return s.ttl }

// Grant records id for userID until the TTL elapses.
func (s *TokenStore) Grant(id string, userID domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[id] = tokenEntry{userID: userID, expires: s.now().Add(s.ttl)}
}

// Redeem consumes id. It reports false for unknown, used or expired tokens.
func (s *TokenStore) Redeem(id string) (domain.UserID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.UserID{}, false
	}
	delete(s.entries, id)
	if !s.now().Before(e.expires) {
		return domain.UserID{}, false
	}
	return e.userID, true
}

// Revoke drops id if present.
func (s *TokenStore) Revoke(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes every expired token.
func (s *TokenStore) Sweep() {
	s.mu.Lock()
	s.sweepLocked()
	s.mu.Unlock()
}

func (s *TokenStore) sweepLocked() {
	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
		}
	}
}

// Run sweeps on every interval until ctx is done.
func (s *TokenStore) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
