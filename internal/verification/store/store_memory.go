// Package store provides SessionStore implementations: an in-memory store
// for tests and standalone use, and a PostgreSQL store for production.
package store

import (
	"context"
	"sync"

	"veripass/internal/verification"
	id "veripass/pkg/domain"
)

// MemoryStore keeps session snapshots in memory. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]verification.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[id.SessionID]verification.Snapshot)}
}

func (s *MemoryStore) Save(_ context.Context, session *verification.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session.Snapshot()
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*verification.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[sessionID]
	if !ok {
		return nil, verification.ErrSessionNotFound
	}
	return verification.FromSnapshot(snap), nil
}

// Clear drops all stored sessions. Test helper.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[id.SessionID]verification.Snapshot)
}
