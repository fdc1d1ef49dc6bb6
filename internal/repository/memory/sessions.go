package memory

import (
	"context"
	"sync"
	"time"

	"bankledger/internal/service"
)

// SessionStore 内存会话存储，过期靠读时惰性检查
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
}

type sessionEntry struct {
	userID    int64
	expiresAt time.Time
}

var _ service.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]sessionEntry)}
}

func (s *SessionStore) SaveSession(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = sessionEntry{
		userID:    userID,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[token]
	if !ok {
		return 0, service.ErrSessionNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.sessions, token)
		return 0, service.ErrSessionNotFound
	}
	return entry.userID, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}
