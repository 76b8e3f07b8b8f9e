// Package files provides the filesystem tools behind a path sandbox.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
)

// Sandbox confines filesystem access to a set of allowed roots. Every tool
// resolves its path through the sandbox before any I/O.
type Sandbox struct {
	roots []string
}

// NewSandbox builds a sandbox. Roots are made absolute and cleaned; at least
// one root is required.
func NewSandbox(roots ...string) (*Sandbox, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("sandbox needs at least one root")
	}
	cleaned := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := normalize(root, "")
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", root, err)
		}
		cleaned = append(cleaned, abs)
	}
	return &Sandbox{roots: cleaned}, nil
}

// Roots returns the allowed roots.
func (s *Sandbox) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// Resolve normalizes path (absolute or relative to base) and checks
// containment. It returns an access-denied tool error before any I/O when
// the path escapes every allowed root.
func (s *Sandbox) Resolve(path, base string) (string, error) {
	abs, err := normalize(path, base)
	if err != nil {
		return "", agent.NewToolError(agent.ErrCodeValidationFailed, "files",
			fmt.Sprintf("invalid path %q", path)).WithCause(err)
	}
	for _, root := range s.roots {
		if contains(root, abs) {
			return abs, nil
		}
	}
	return "", agent.NewToolError(agent.ErrCodeAccessDenied, "files",
		fmt.Sprintf("path %q is outside the allowed roots", path))
}

// normalize expands ~, makes the path absolute against base, cleans it, and
// resolves symlinks best-effort: a path that does not exist yet resolves its
// deepest existing ancestor.
func normalize(path, base string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if !filepath.IsAbs(path) {
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			base = wd
		}
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)
	return resolveSymlinks(path), nil
}

// resolveSymlinks applies EvalSymlinks to the longest existing prefix and
// reattaches the remainder.
func resolveSymlinks(path string) string {
	remainder := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, remainder)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

// contains reports whether abs is root itself or below it, on a path
// separator boundary.
func contains(root, abs string) bool {
	if abs == root {
		return true
	}
	return strings.HasPrefix(abs, root+string(filepath.Separator))
}
