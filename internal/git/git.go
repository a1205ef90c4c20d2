package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Exposure describes how a plaintext file relates to the surrounding git
// repository
type Exposure struct {
	Path    string
	IsRepo  bool
	Tracked bool // committed or staged, the worst case
	Ignored bool // matched by a .gitignore rule
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	return cmd.Run() == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	// exit code 0 means ignored
	return cmd.Run() == nil
}

// CheckExposure reports whether path, relative to workDir, could end up
// in a commit. Outside a repository the result has IsRepo false.
func CheckExposure(workDir, path string) Exposure {
	e := Exposure{Path: path}
	if !IsGitRepo(workDir) {
		return e
	}
	e.IsRepo = true
	e.Tracked = IsTracked(workDir, path)
	e.Ignored = IsIgnored(workDir, path)
	return e
}

// Safe is true when the file cannot be committed by accident
func (e Exposure) Safe() bool {
	return !e.IsRepo || (!e.Tracked && e.Ignored)
}

// Warning formats a message for an unsafe file, or "" when it is safe
func (e Exposure) Warning() string {
	switch {
	case e.Safe():
		return ""
	case e.Tracked:
		return fmt.Sprintf("error: %s is tracked by git (run: git rm --cached %s)", e.Path, e.Path)
	default:
		return fmt.Sprintf("warning: %s is not in .gitignore (add it to .gitignore)", e.Path)
	}
}
