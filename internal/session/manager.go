// Package session owns the review session lifecycle. The Manager is the
// sole mutator of ReviewSession records; everything else observes snapshots.
package session

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gavelhq/gavel/internal/models"
	"github.com/gavelhq/gavel/internal/store"
)

// UnknownAgentSession is the sentinel recorded when the upstream agent
// session cannot be resolved.
const UnknownAgentSession = "unknown"

// DefaultMaxIterations bounds a session when the caller does not specify.
const DefaultMaxIterations = 10

// Manager mediates all session mutations and persists through the Store.
//
// Mutations on the same review ID are serialized with a per-ID lock so
// concurrent read-modify-persist cycles cannot lose updates. Operations on
// different review IDs proceed independently.
type Manager struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a Manager backed by the given store.
func NewManager(s store.Store) *Manager {
	return &Manager{
		store: s,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing writes for one review ID.
func (m *Manager) lockFor(reviewID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[reviewID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[reviewID] = l
	}
	return l
}

// newReviewID generates a ULID review identifier.
func newReviewID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Create allocates a fresh session in status pending and persists it.
// maxIterations <= 0 falls back to DefaultMaxIterations; an empty
// agentSessionID records the unknown sentinel.
func (m *Manager) Create(files []string, projectPath string, maxIterations int, agentSessionID string) (*models.ReviewSession, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if agentSessionID == "" {
		agentSessionID = UnknownAgentSession
	}

	now := time.Now().UTC()
	session := &models.ReviewSession{
		ReviewID:       newReviewID(),
		AgentSessionID: agentSessionID,
		ProjectPath:    projectPath,
		Files:          append([]string(nil), files...),
		Iteration:      0,
		MaxIterations:  maxIterations,
		History:        []models.Iteration{},
		PendingQs:      []string{},
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the session, or nil when the ID is unknown.
func (m *Manager) Get(reviewID string) (*models.ReviewSession, error) {
	return m.store.Load(reviewID)
}

// mutate loads, applies fn, stamps UpdatedAt and persists, holding the
// per-ID lock for the whole read-modify-persist cycle. Returns nil when the
// session does not exist.
func (m *Manager) mutate(reviewID string, fn func(*models.ReviewSession)) (*models.ReviewSession, error) {
	l := m.lockFor(reviewID)
	l.Lock()
	defer l.Unlock()

	session, err := m.store.Load(reviewID)
	if err != nil || session == nil {
		return nil, err
	}
	fn(session)
	session.UpdatedAt = time.Now().UTC()
	if err := m.store.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateStatus sets the session status. Transition legality is not checked
// here; the orchestrator owns the state machine.
func (m *Manager) UpdateStatus(reviewID string, status models.ReviewStatus) (*models.ReviewSession, error) {
	return m.mutate(reviewID, func(s *models.ReviewSession) {
		s.Status = status
	})
}

// AddIteration increments the counter and appends a matching history entry.
func (m *Manager) AddIteration(reviewID, feedback, externalChanges string) (*models.ReviewSession, error) {
	return m.mutate(reviewID, func(s *models.ReviewSession) {
		s.Iteration++
		s.History = append(s.History, models.Iteration{
			Iteration:        s.Iteration,
			ReviewerFeedback: feedback,
			ExternalChanges:  externalChanges,
			Timestamp:        time.Now().UTC(),
		})
	})
}

// SetPendingQuestions replaces the pending questions and forces the session
// into needs_human.
func (m *Manager) SetPendingQuestions(reviewID string, questions []string) (*models.ReviewSession, error) {
	return m.mutate(reviewID, func(s *models.ReviewSession) {
		s.PendingQs = append([]string(nil), questions...)
		s.Status = models.StatusNeedsHuman
	})
}

// AnswerQuestions attaches answers to the most recent history entry, clears
// pending questions and resumes the session. When the history is empty the
// answers are dropped; callers must not answer before the first iteration.
func (m *Manager) AnswerQuestions(reviewID string, answers map[string]string) (*models.ReviewSession, error) {
	return m.mutate(reviewID, func(s *models.ReviewSession) {
		if len(s.History) > 0 {
			s.History[len(s.History)-1].HumanAnswers = answers
		}
		s.PendingQs = []string{}
		s.Status = models.StatusInProgress
	})
}

// MaxIterationsReached reports whether the session has used its budget.
func (m *Manager) MaxIterationsReached(session *models.ReviewSession) bool {
	return session.Iteration >= session.MaxIterations
}

// ActiveSession returns the most recently updated session for the project
// in an active status (in_progress or needs_human), or nil.
func (m *Manager) ActiveSession(projectPath string) (*models.ReviewSession, error) {
	sessions, err := m.store.ListByProject(projectPath)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.Status.Active() {
			return s, nil
		}
	}
	return nil, nil
}

// List returns all sessions for a project, most recently updated first.
func (m *Manager) List(projectPath string) ([]*models.ReviewSession, error) {
	return m.store.ListByProject(projectPath)
}

// Delete removes a session permanently.
func (m *Manager) Delete(reviewID string) error {
	return m.store.Delete(reviewID)
}
