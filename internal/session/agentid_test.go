package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTranscripts builds a ~/.claude/projects/<encoded> dir for projectPath
// under a temp HOME and returns the transcripts directory.
func fakeTranscripts(t *testing.T, projectPath string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	encoded := strings.ReplaceAll(projectPath, string(filepath.Separator), "-")
	dir := filepath.Join(home, ".claude", "projects", encoded)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func writeTranscript(t *testing.T, dir, name string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestResolveAgentSessionIDNewestWins(t *testing.T) {
	dir := fakeTranscripts(t, "/tmp/proj")
	now := time.Now()
	writeTranscript(t, dir, "older-session.jsonl", now.Add(-time.Hour))
	writeTranscript(t, dir, "newest-session.jsonl", now)

	assert.Equal(t, "newest-session", ResolveAgentSessionID("/tmp/proj"))
}

func TestResolveAgentSessionIDSkipsSubagents(t *testing.T) {
	dir := fakeTranscripts(t, "/tmp/proj")
	now := time.Now()
	writeTranscript(t, dir, "real-session.jsonl", now.Add(-time.Hour))
	writeTranscript(t, dir, "agent-subtask.jsonl", now)
	writeTranscript(t, dir, "notes.txt", now)

	assert.Equal(t, "real-session", ResolveAgentSessionID("/tmp/proj"))
}

func TestResolveAgentSessionIDUnresolvable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	assert.Equal(t, "", ResolveAgentSessionID("/tmp/no-transcripts"))
}

func TestResolveAgentSessionIDEmptyDir(t *testing.T) {
	fakeTranscripts(t, "/tmp/proj")

	assert.Equal(t, "", ResolveAgentSessionID("/tmp/proj"))
}
