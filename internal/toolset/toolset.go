// Package toolset assembles tool presets for agents.
package toolset

import (
	"fmt"
	"log/slog"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/tools/background"
	"github.com/haasonsaas/agentcore/internal/tools/browser"
	"github.com/haasonsaas/agentcore/internal/tools/files"
	"github.com/haasonsaas/agentcore/internal/tools/reasoning"
	"github.com/haasonsaas/agentcore/internal/tools/shell"
)

// Preset names a tool bundle. Each preset is a superset of the previous:
// minimal ⊂ standard ⊂ full.
type Preset string

const (
	// PresetMinimal: read-only filesystem access plus deep reasoning.
	PresetMinimal Preset = "minimal"

	// PresetStandard: minimal plus shell and filesystem writes.
	PresetStandard Preset = "standard"

	// PresetFull: standard plus browser and background sessions.
	PresetFull Preset = "full"
)

// Options configures preset construction.
type Options struct {
	// WorkspaceRoot is the only sandbox root unless ExtraRoots adds more.
	WorkspaceRoot string

	// ExtraRoots widens the filesystem sandbox.
	ExtraRoots []string

	Logger *slog.Logger
}

// ForPreset builds a fresh toolset. Every call constructs new tool values
// and new backing state (sandbox, reasoning engine, session store, browser
// driver), so agents never share tool state.
func ForPreset(preset Preset, opts Options) ([]*agent.Tool, error) {
	if opts.WorkspaceRoot == "" {
		return nil, fmt.Errorf("toolset: workspace root is required")
	}
	sb, err := files.NewSandbox(append([]string{opts.WorkspaceRoot}, opts.ExtraRoots...)...)
	if err != nil {
		return nil, fmt.Errorf("toolset: %w", err)
	}

	minimal := []*agent.Tool{
		files.ReadTool(sb),
		files.ListTool(sb),
		files.InfoTool(sb),
		reasoning.NewTool(),
	}

	switch preset {
	case PresetMinimal:
		return minimal, nil
	case PresetStandard:
		return append(minimal, standardTools(sb, opts)...), nil
	case PresetFull:
		tools := append(minimal, standardTools(sb, opts)...)
		tools = append(tools,
			browser.NewTool(browser.NewDriver(opts.Logger)),
			background.NewTool(background.NewStore(opts.Logger)),
		)
		return tools, nil
	}
	return nil, fmt.Errorf("toolset: unknown preset %q", preset)
}

func standardTools(sb *files.Sandbox, opts Options) []*agent.Tool {
	return []*agent.Tool{
		shell.New(opts.Logger),
		files.WriteTool(sb),
		files.MkdirTool(sb),
	}
}
