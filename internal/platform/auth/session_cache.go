package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SessionCache remembers active sessions for a short time so that every
// request does not hit the user store. Ended sessions are never cached.
type SessionCache struct {
	next  SessionValidator
	cache *expirable.LRU[string, struct{}]
}

func NewSessionCache(next SessionValidator, size int, ttl time.Duration) *SessionCache {
	return &SessionCache{
		next:  next,
		cache: expirable.NewLRU[string, struct{}](size, nil, ttl),
	}
}

func (s *SessionCache) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	if _, ok := s.cache.Get(sessionID); ok {
		return true, nil
	}
	active, err := s.next.SessionActive(ctx, sessionID)
	if err != nil || !active {
		return false, err
	}
	s.cache.Add(sessionID, struct{}{})
	return true, nil
}

// Evict forgets a session, typically on logout.
func (s *SessionCache) Evict(sessionID string) {
	s.cache.Remove(sessionID)
}
