package session

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ResolveAgentSessionID finds the conversational session most likely to have
// started this review by locating the newest transcript for the project
// under ~/.claude/projects. Transcript directories encode the project path
// with separators flattened to dashes. Returns "" when nothing resolves;
// callers fall back to the unknown sentinel.
func ResolveAgentSessionID(projectPath string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return ""
	}
	encoded := strings.ReplaceAll(abs, string(filepath.Separator), "-")
	dir := filepath.Join(home, ".claude", "projects", encoded)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var newest string
	var newestAt time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		// Subagent transcripts are not the originating session.
		if strings.HasPrefix(name, "agent-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest = name
			newestAt = info.ModTime()
		}
	}
	if newest == "" {
		return ""
	}
	return strings.TrimSuffix(newest, ".jsonl")
}
