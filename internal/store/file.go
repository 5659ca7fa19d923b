package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gavelhq/gavel/internal/models"
)

// FileStore persists each session as one JSON document under
// <baseDir>/sessions/<reviewID>.json. Distinct IDs map to distinct files,
// so concurrent processes working on different reviews never contend.
type FileStore struct {
	sessionsDir string
}

// NewFileStore creates the sessions directory under baseDir if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	dir := filepath.Join(baseDir, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}
	return &FileStore{sessionsDir: dir}, nil
}

func (f *FileStore) sessionPath(reviewID string) string {
	return filepath.Join(f.sessionsDir, reviewID+".json")
}

// Save writes the session atomically (temp file + rename) so a concurrent
// reader never observes a partially written record.
func (f *FileStore) Save(session *models.ReviewSession) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ReviewID, err)
	}

	tmp, err := os.CreateTemp(f.sessionsDir, session.ReviewID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session %s: %w", session.ReviewID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.sessionPath(session.ReviewID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// Load returns nil for missing or unreadable records. A corrupted session
// file must never crash a status query; it reads as absence.
func (f *FileStore) Load(reviewID string) (*models.ReviewSession, error) {
	data, err := os.ReadFile(f.sessionPath(reviewID))
	if err != nil {
		return nil, nil
	}
	var session models.ReviewSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, nil
	}
	return &session, nil
}

func (f *FileStore) ListByProject(projectPath string) ([]*models.ReviewSession, error) {
	all, err := f.listAll()
	if err != nil {
		return nil, err
	}
	var sessions []*models.ReviewSession
	for _, s := range all {
		if s.ProjectPath == projectPath {
			sessions = append(sessions, s)
		}
	}
	sortByUpdatedDesc(sessions)
	return sessions, nil
}

func (f *FileStore) LoadByAgentSession(agentSessionID string) ([]*models.ReviewSession, error) {
	all, err := f.listAll()
	if err != nil {
		return nil, err
	}
	var sessions []*models.ReviewSession
	for _, s := range all {
		if s.AgentSessionID == agentSessionID {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func (f *FileStore) Delete(reviewID string) error {
	err := os.Remove(f.sessionPath(reviewID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", reviewID, err)
	}
	return nil
}

func (f *FileStore) listAll() ([]*models.ReviewSession, error) {
	entries, err := os.ReadDir(f.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}
	var sessions []*models.ReviewSession
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		s, err := f.Load(strings.TrimSuffix(name, ".json"))
		if err != nil || s == nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func sortByUpdatedDesc(sessions []*models.ReviewSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}
