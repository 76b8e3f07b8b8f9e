package files

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/agentcore/internal/agent"
)

func TestSandboxContainment(t *testing.T) {
	root := t.TempDir()
	sb, err := NewSandbox(root)
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		allowed bool
	}{
		{"root itself", root, true},
		{"inside root", filepath.Join(root, "sub", "file.txt"), true},
		{"relative inside", "notes.txt", true},
		{"system file", "/etc/passwd", false},
		{"traversal escape", filepath.Join(root, "..", "elsewhere"), false},
		{"prefix sibling", root + "-sibling/file", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sb.Resolve(tt.path, root)
			if tt.allowed && err != nil {
				t.Errorf("Resolve(%q) = %v, want allowed", tt.path, err)
			}
			if !tt.allowed {
				var te *agent.ToolError
				if !errors.As(err, &te) || te.Code != agent.ErrCodeAccessDenied {
					t.Errorf("Resolve(%q) err = %v, want access-denied", tt.path, err)
				}
			}
		})
	}
}

func TestSandboxMultipleRoots(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	sb, err := NewSandbox(rootA, rootB)
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	if _, err := sb.Resolve(filepath.Join(rootB, "x"), rootA); err != nil {
		t.Errorf("second root rejected: %v", err)
	}
}

func TestSandboxSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	sb, err := NewSandbox(root)
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	if _, err := sb.Resolve(filepath.Join(link, "secret.txt"), root); err == nil {
		t.Error("symlinked escape allowed")
	}
}

func TestSandboxNeedsRoot(t *testing.T) {
	if _, err := NewSandbox(); err == nil {
		t.Error("empty sandbox accepted")
	}
}
