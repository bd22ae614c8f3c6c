package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/engine"
	"github.com/containai/cai/internal/procrunner"
	"github.com/containai/cai/internal/template"
)

// ProcessRunner is the narrowed slice of *procrunner.Runner setup needs for
// host tools that are not the engine CLI itself (ssh-keygen, systemctl,
// limactl).
type ProcessRunner interface {
	Capture(ctx context.Context, name string, args []string, env []string) (procrunner.CaptureResult, error)
}

// DefaultTemplateName is the single built-in template setup installs.
const DefaultTemplateName = "base"

var defaultDockerfile = template.Rewrite(`FROM ubuntu:22.04

# ContainAI managed devcontainer base image.
RUN apt-get update && apt-get install -y --no-install-recommends \
    openssh-server sudo git curl ca-certificates \
    && rm -rf /var/lib/apt/lists/*
`)

// SetupOptions configures one bootstrap run.
type SetupOptions struct {
	ConfigDir      string // defaults to UserConfigDir()
	HomeDir        string // defaults to os.UserHomeDir()
	SkipTemplates  bool
	DryRun         bool
	BuildTemplates bool // passed through to the final doctor run
}

// SetupStep records one bootstrap action's disposition.
type SetupStep struct {
	Name    string `json:"name"`
	Did     bool   `json:"did"`
	Skipped bool   `json:"skipped"`
	Detail  string `json:"detail"`
}

// SetupResult is the full bootstrap outcome, ending with a doctor Result.
type SetupResult struct {
	Steps  []SetupStep `json:"steps"`
	Doctor Result      `json:"doctor"`
}

// Setup runs the idempotent bootstrap described in spec.md §4.10.
type Setup struct {
	Adapter   EngineClient
	Processes ProcessRunner
}

// NewSetup creates a Setup.
func NewSetup(adapter EngineClient, processes ProcessRunner) *Setup {
	return &Setup{Adapter: adapter, Processes: processes}
}

// UserConfigDir returns $XDG_CONFIG_HOME/containai, falling back to
// ~/.config/containai.
func UserConfigDir(homeDir string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "containai")
	}
	return filepath.Join(homeDir, ".config", "containai")
}

// Run executes every bootstrap step in order, then runs Doctor.
func (s *Setup) Run(ctx context.Context, opts SetupOptions) SetupResult {
	if opts.HomeDir == "" {
		if h, err := os.UserHomeDir(); err == nil {
			opts.HomeDir = h
		}
	}
	if opts.ConfigDir == "" {
		opts.ConfigDir = UserConfigDir(opts.HomeDir)
	}

	var result SetupResult
	result.Steps = append(result.Steps, s.ensureDirs(opts)...)
	result.Steps = append(result.Steps, s.ensureSSHKey(ctx, opts))
	result.Steps = append(result.Steps, s.ensureSystemdService(ctx, opts))
	if runtime.GOOS == "darwin" {
		result.Steps = append(result.Steps, s.ensureLimaVM(ctx, opts))
	}
	result.Steps = append(result.Steps, s.ensureContext(ctx, opts))
	if !opts.SkipTemplates {
		result.Steps = append(result.Steps, s.installTemplates(opts)...)
	} else {
		result.Steps = append(result.Steps, SetupStep{Name: "install templates", Skipped: true, Detail: "--skip-templates"})
	}

	result.Doctor = New(s.Adapter).Run(ctx, Options{
		BuildTemplates: opts.BuildTemplates,
		TemplateDirs:   map[string]string{DefaultTemplateName: filepath.Join(opts.ConfigDir, "templates", DefaultTemplateName)},
	})
	return result
}

func (s *Setup) ensureDirs(opts SetupOptions) []SetupStep {
	dirs := []struct {
		name string
		path string
		mode os.FileMode
	}{
		{"config directory", opts.ConfigDir, 0o700},
		{"ssh directory", filepath.Join(opts.HomeDir, ".ssh"), 0o700},
		{"ssh fragment directory", filepath.Join(opts.HomeDir, ".ssh", "containai.d"), 0o700},
	}

	var steps []SetupStep
	for _, d := range dirs {
		if _, err := os.Stat(d.path); err == nil {
			steps = append(steps, SetupStep{Name: d.name, Did: false, Detail: "already present"})
			continue
		}
		if opts.DryRun {
			steps = append(steps, SetupStep{Name: d.name, Detail: fmt.Sprintf("Would create %s", d.path)})
			continue
		}
		if err := os.MkdirAll(d.path, d.mode); err != nil {
			steps = append(steps, SetupStep{Name: d.name, Detail: fmt.Sprintf("failed: %v", err)})
			continue
		}
		steps = append(steps, SetupStep{Name: d.name, Did: true, Detail: d.path})
	}
	return steps
}

func (s *Setup) keyPath(opts SetupOptions) string {
	return filepath.Join(opts.ConfigDir, "id_containai")
}

func (s *Setup) ensureSSHKey(ctx context.Context, opts SetupOptions) SetupStep {
	path := s.keyPath(opts)
	if _, err := os.Stat(path); err == nil {
		return SetupStep{Name: "SSH key", Detail: "already present"}
	}
	if opts.DryRun {
		return SetupStep{Name: "SSH key", Detail: fmt.Sprintf("Would generate Ed25519 key at %s", path)}
	}
	res, err := s.Processes.Capture(ctx, "ssh-keygen", []string{"-t", "ed25519", "-N", "", "-f", path, "-C", "containai"}, nil)
	if err != nil || res.ExitCode != 0 {
		return SetupStep{Name: "SSH key", Detail: fmt.Sprintf("failed: %s", firstLine(res.Stderr))}
	}
	return SetupStep{Name: "SSH key", Did: true, Detail: path}
}

func (s *Setup) ensureSystemdService(ctx context.Context, opts SetupOptions) SetupStep {
	cat, err := s.Processes.Capture(ctx, "systemctl", []string{"cat", common.SystemdUnitName}, nil)
	if err != nil || cat.ExitCode != 0 {
		return SetupStep{Name: "systemd unit", Skipped: true, Detail: "unit not installed"}
	}
	if opts.DryRun {
		return SetupStep{Name: "systemd unit", Detail: fmt.Sprintf("Would start %s", common.SystemdUnitName)}
	}
	res, err := s.Processes.Capture(ctx, "systemctl", []string{"start", common.SystemdUnitName}, nil)
	if err != nil || res.ExitCode != 0 {
		return SetupStep{Name: "systemd unit", Detail: fmt.Sprintf("failed: %s", firstLine(res.Stderr))}
	}
	return SetupStep{Name: "systemd unit", Did: true, Detail: "started " + common.SystemdUnitName}
}

func (s *Setup) ensureLimaVM(ctx context.Context, opts SetupOptions) SetupStep {
	if _, err := os.Stat(common.ManagedSocketPath); err == nil {
		return SetupStep{Name: "Lima VM", Detail: "socket already present"}
	}
	if opts.DryRun {
		return SetupStep{Name: "Lima VM", Detail: fmt.Sprintf("Would start Lima VM %s", common.LimaVMName)}
	}
	res, err := s.Processes.Capture(ctx, "limactl", []string{"start", common.LimaVMName}, nil)
	if err != nil || res.ExitCode != 0 {
		return SetupStep{Name: "Lima VM", Detail: fmt.Sprintf("failed: %s", firstLine(res.Stderr))}
	}
	return SetupStep{Name: "Lima VM", Did: true, Detail: "started " + common.LimaVMName}
}

func (s *Setup) ensureContext(ctx context.Context, opts SetupOptions) SetupStep {
	if _, ok := s.Adapter.ManagedContext(ctx); ok {
		return SetupStep{Name: "docker context", Detail: "already present"}
	}
	name := engine.ManagedContextNames[0]
	if opts.DryRun {
		return SetupStep{Name: "docker context", Detail: fmt.Sprintf("Would create context %s -> %s", name, common.ManagedSocketPath)}
	}
	res, err := s.Adapter.Capture(ctx, "", "context", "create", name, "--docker", "host=unix://"+common.ManagedSocketPath)
	if err != nil || res.ExitCode != 0 {
		return SetupStep{Name: "docker context", Detail: fmt.Sprintf("failed: %s", firstLine(res.Stderr))}
	}
	return SetupStep{Name: "docker context", Did: true, Detail: name}
}

func (s *Setup) installTemplates(opts SetupOptions) []SetupStep {
	dir := filepath.Join(opts.ConfigDir, "templates", DefaultTemplateName)
	path := filepath.Join(dir, "Dockerfile")

	if _, err := os.Stat(path); err == nil {
		return []SetupStep{{Name: "template " + DefaultTemplateName, Detail: "already present"}}
	}
	if opts.DryRun {
		return []SetupStep{{Name: "template " + DefaultTemplateName, Detail: fmt.Sprintf("Would install %s", path)}}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return []SetupStep{{Name: "template " + DefaultTemplateName, Detail: fmt.Sprintf("failed: %v", err)}}
	}
	if err := os.WriteFile(path, []byte(defaultDockerfile), 0o600); err != nil {
		return []SetupStep{{Name: "template " + DefaultTemplateName, Detail: fmt.Sprintf("failed: %v", err)}}
	}
	return []SetupStep{{Name: "template " + DefaultTemplateName, Did: true, Detail: path}}
}
