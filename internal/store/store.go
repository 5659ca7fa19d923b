package store

import "github.com/gavelhq/gavel/internal/models"

// Store defines the persistence interface for review sessions.
//
// Implementations persist byte-for-byte snapshots keyed by review ID and
// perform no interpretation of session contents. Load returns (nil, nil)
// when the ID is unknown or the stored record is unreadable: absence is a
// valid outcome, not a fault.
type Store interface {
	Save(session *models.ReviewSession) error
	Load(reviewID string) (*models.ReviewSession, error)
	// ListByProject returns the project's sessions sorted by UpdatedAt
	// descending (most recently updated first).
	ListByProject(projectPath string) ([]*models.ReviewSession, error)
	// LoadByAgentSession returns all sessions correlated to an upstream
	// agent session ID.
	LoadByAgentSession(agentSessionID string) ([]*models.ReviewSession, error)
	Delete(reviewID string) error
}
