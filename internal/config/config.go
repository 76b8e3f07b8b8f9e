// Package config loads the workspace configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/toolset"
)

// Config is the YAML workspace configuration.
type Config struct {
	WorkspaceRoot string `yaml:"workspace_root"`
	SystemPrompt  string `yaml:"system_prompt"`

	// MaxSteps caps model turns per run. Defaults to 25.
	MaxSteps int `yaml:"max_steps"`

	// Preset names the toolset bundle. Defaults to standard.
	Preset string `yaml:"preset"`

	// Approval accepts either a bare boolean or the full object form.
	Approval ApprovalSetting `yaml:"approval"`

	Limits agent.UsageLimits `yaml:"limits"`

	// Eval tunes the eval runner defaults.
	Eval EvalSettings `yaml:"eval"`
}

// ApprovalSetting is the bool-or-object approval field.
//
//	approval: true
//
// and
//
//	approval:
//	  enabled: true
//	  timeout_ms: 60000
//	  timeout_action: deny
//	  dangerous_tools: ["shell", "mcp_*"]
//
// are both accepted.
type ApprovalSetting struct {
	Enabled        bool     `yaml:"enabled"`
	TimeoutMS      int      `yaml:"timeout_ms"`
	TimeoutAction  string   `yaml:"timeout_action"`
	DangerousTools []string `yaml:"dangerous_tools"`
}

func (a *ApprovalSetting) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var enabled bool
		if err := value.Decode(&enabled); err != nil {
			return fmt.Errorf("approval: expected bool or object: %w", err)
		}
		*a = ApprovalSetting{Enabled: enabled}
		return nil
	}
	type raw ApprovalSetting
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	*a = ApprovalSetting(r)
	return nil
}

// ToAgent converts the setting into the runtime approval config.
func (a ApprovalSetting) ToAgent() agent.ApprovalConfig {
	action := agent.TimeoutDeny
	if a.TimeoutAction == string(agent.TimeoutApprove) {
		action = agent.TimeoutApprove
	}
	return agent.ApprovalConfig{
		Enabled:        a.Enabled,
		Timeout:        time.Duration(a.TimeoutMS) * time.Millisecond,
		TimeoutAction:  action,
		DangerousTools: a.DangerousTools,
	}
}

// EvalSettings tunes the eval runner.
type EvalSettings struct {
	// MaxConcurrency caps cases in flight. Defaults to 1.
	MaxConcurrency int `yaml:"max_concurrency"`

	// CaseTimeoutMS bounds one case. Defaults to 30000.
	CaseTimeoutMS int `yaml:"case_timeout_ms"`
}

// Load reads and normalizes a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and normalizes config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return sanitize(&cfg)
}

// Default returns the normalized zero config rooted at dir.
func Default(dir string) *Config {
	cfg, _ := sanitize(&Config{WorkspaceRoot: dir})
	return cfg
}

func sanitize(cfg *Config) (*Config, error) {
	if cfg.WorkspaceRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("config: workspace_root unset and no working directory: %w", err)
		}
		cfg.WorkspaceRoot = wd
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = agent.DefaultMaxSteps
	}
	if cfg.Preset == "" {
		cfg.Preset = string(toolset.PresetStandard)
	}
	switch toolset.Preset(cfg.Preset) {
	case toolset.PresetMinimal, toolset.PresetStandard, toolset.PresetFull:
	default:
		return nil, fmt.Errorf("config: unknown preset %q", cfg.Preset)
	}
	if action := cfg.Approval.TimeoutAction; action != "" &&
		action != string(agent.TimeoutApprove) && action != string(agent.TimeoutDeny) {
		return nil, fmt.Errorf("config: unknown timeout_action %q", action)
	}
	if cfg.Eval.MaxConcurrency <= 0 {
		cfg.Eval.MaxConcurrency = 1
	}
	if cfg.Eval.CaseTimeoutMS <= 0 {
		cfg.Eval.CaseTimeoutMS = 30000
	}
	return cfg, nil
}
