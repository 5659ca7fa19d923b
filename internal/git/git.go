// Package git shells out to the git CLI for repository queries.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Client defines the interface for git operations on arbitrary repos.
// All methods take a path parameter since gavel operates on multiple repos.
type Client interface {
	RepoRoot(path string) (string, error)
	CurrentBranch(path string) (string, error)
	IsDirty(path string) (bool, error)
	ChangedFiles(path string) ([]string, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

func (c *RealClient) CurrentBranch(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--abbrev-ref", "HEAD")
}

func (c *RealClient) IsDirty(path string) (bool, error) {
	out, err := gitCmd(path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// ChangedFiles returns the modified and untracked paths reported by
// `git status --porcelain`, minus dotfiles. Used as the review target when
// the caller names no files explicitly.
func (c *RealClient) ChangedFiles(path string) ([]string, error) {
	out, err := gitCmd(path, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return ParseStatusPorcelain(out), nil
}

// ParseStatusPorcelain extracts file paths from `git status --porcelain`
// output. Each line is a two-character status code, a space, then the path;
// renames list the new path after " -> ".
func ParseStatusPorcelain(out string) []string {
	files := []string{}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		file := line[3:]
		if idx := strings.LastIndex(file, " -> "); idx >= 0 {
			file = file[idx+4:]
		}
		file = strings.Trim(file, `"`)
		// Top-level dotfiles (.envrc, .gitignore) are never review targets.
		if strings.HasPrefix(file, ".") {
			continue
		}
		files = append(files, file)
	}
	return files
}
