package store

import (
	"sync"

	"github.com/gavelhq/gavel/internal/models"
)

// MemoryStore is an in-memory Store used by tests and selected via
// configuration. Sessions are deep-copied on the way in and out so callers
// never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ReviewSession
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.ReviewSession)}
}

func (m *MemoryStore) Save(session *models.ReviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ReviewID] = session.Clone()
	return nil
}

func (m *MemoryStore) Load(reviewID string) (*models.ReviewSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[reviewID].Clone(), nil
}

func (m *MemoryStore) ListByProject(projectPath string) ([]*models.ReviewSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sessions []*models.ReviewSession
	for _, s := range m.sessions {
		if s.ProjectPath == projectPath {
			sessions = append(sessions, s.Clone())
		}
	}
	sortByUpdatedDesc(sessions)
	return sessions, nil
}

func (m *MemoryStore) LoadByAgentSession(agentSessionID string) ([]*models.ReviewSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sessions []*models.ReviewSession
	for _, s := range m.sessions {
		if s.AgentSessionID == agentSessionID {
			sessions = append(sessions, s.Clone())
		}
	}
	return sessions, nil
}

func (m *MemoryStore) Delete(reviewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, reviewID)
	return nil
}
