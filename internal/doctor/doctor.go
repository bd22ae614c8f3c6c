// Package doctor implements the four-probe health check (C17), the
// idempotent setup bootstrap, and the single-container status report.
package doctor

import (
	"context"
	"encoding/json"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/procrunner"
)

// EngineClient is the narrowed slice of *engine.Adapter doctor depends on.
type EngineClient interface {
	ManagedContext(ctx context.Context) (name string, ok bool)
	Capture(ctx context.Context, contextName string, args ...string) (procrunner.CaptureResult, error)
}

// TemplateCheck is the outcome of one smoke-build probe.
type TemplateCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Result captures the four booleans spec.md §4.10 requires, plus the
// optional per-template smoke-build results.
type Result struct {
	CLIPresent      bool            `json:"cliPresent"`
	ManagedContext  string          `json:"managedContext,omitempty"`
	ContextPresent  bool            `json:"contextPresent"`
	EngineReachable bool            `json:"engineReachable"`
	SysboxPresent   bool            `json:"sysboxPresent"`
	Templates       []TemplateCheck `json:"templates,omitempty"`
}

// OK reports whether every required probe passed. Template smoke-build
// failures do not affect OK — they are informational, like the teacher's
// config checks layered on top of its system checks.
func (r Result) OK() bool {
	return r.CLIPresent && r.ContextPresent && r.EngineReachable && r.SysboxPresent
}

// Doctor runs the four probes (and, optionally, template smoke builds)
// against an EngineClient.
type Doctor struct {
	Adapter EngineClient
}

// New creates a Doctor.
func New(adapter EngineClient) *Doctor {
	return &Doctor{Adapter: adapter}
}

// Options configures one Run.
type Options struct {
	// BuildTemplates, when set, additionally builds every Dockerfile under
	// templateDirs as a smoke test.
	BuildTemplates bool
	TemplateDirs   map[string]string // name -> directory containing Dockerfile
}

// Run executes the four probes in order, short-circuiting later probes once
// an earlier one fails (an unreachable engine can't be asked about its
// runtimes).
func (d *Doctor) Run(ctx context.Context, opts Options) Result {
	var res Result

	res.CLIPresent = d.probeCLI(ctx)
	if !res.CLIPresent {
		return res
	}

	name, ok := d.Adapter.ManagedContext(ctx)
	res.ManagedContext = name
	res.ContextPresent = ok
	if !ok {
		return res
	}

	runtimes, reachable := d.probeInfo(ctx, name)
	res.EngineReachable = reachable
	if !reachable {
		return res
	}
	_, res.SysboxPresent = runtimes[common.ManagedRuntime]

	if opts.BuildTemplates {
		res.Templates = d.smokeBuildTemplates(ctx, name, opts.TemplateDirs)
	}

	return res
}

// probeCLI checks that the engine binary itself is on PATH by attempting a
// context-less version query; a spawn failure (exit 127) means "not found".
func (d *Doctor) probeCLI(ctx context.Context) bool {
	res, err := d.Adapter.Capture(ctx, "", "--version")
	if err != nil && res.ExitCode == 127 {
		return false
	}
	return true
}

// probeInfo runs `info --format {{json .Runtimes}}` under the managed
// context and parses the runtime name set out of the result.
func (d *Doctor) probeInfo(ctx context.Context, contextName string) (map[string]json.RawMessage, bool) {
	res, err := d.Adapter.Capture(ctx, contextName, "info", "--format", "{{json .Runtimes}}")
	if err != nil || res.ExitCode != 0 {
		return nil, false
	}
	var runtimes map[string]json.RawMessage
	if err := json.Unmarshal([]byte(res.Stdout), &runtimes); err != nil {
		return nil, false
	}
	return runtimes, true
}

func (d *Doctor) smokeBuildTemplates(ctx context.Context, contextName string, dirs map[string]string) []TemplateCheck {
	var checks []TemplateCheck
	for name, dir := range dirs {
		tag := "containai-doctor-smoke-" + name
		res, err := d.Adapter.Capture(ctx, contextName, "build", "--no-cache", "-t", tag, dir)
		if err != nil || res.ExitCode != 0 {
			checks = append(checks, TemplateCheck{Name: name, OK: false, Message: firstLine(res.Stderr)})
			continue
		}
		checks = append(checks, TemplateCheck{Name: name, OK: true, Message: "build succeeded"})
		_, _ = d.Adapter.Capture(ctx, contextName, "image", "rm", "-f", tag)
	}
	return checks
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
