package doctor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"golang.org/x/sync/errgroup"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/ctnrerr"
	"github.com/containai/cai/internal/procrunner"
)

// StatusEngineClient is the narrowed slice of *engine.Adapter status needs.
type StatusEngineClient interface {
	EnumerateContexts(ctx context.Context) []string
	ListContainersByLabel(ctx context.Context, contextName, label, value string) ([]container.Summary, error)
	InspectContainer(ctx context.Context, contextName, nameOrID string) (container.InspectResponse, error)
	Capture(ctx context.Context, contextName string, args ...string) (procrunner.CaptureResult, error)
}

// StatusOptions selects which single container to report on.
type StatusOptions struct {
	Workspace string
	Container string
	CWD       string // used to derive a workspace name when neither flag is set
}

// StatusReport is the rendered result of `cai status`.
type StatusReport struct {
	ContextName string `json:"context"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Image       string `json:"image"`
	Uptime      string `json:"uptime,omitempty"`
	MemUsage    string `json:"memUsage,omitempty"`
	CPUPerc     string `json:"cpuPerc,omitempty"`
}

// StatusReporter resolves and reports on one managed container.
type StatusReporter struct {
	Adapter StatusEngineClient
}

// NewStatusReporter creates a StatusReporter.
func NewStatusReporter(adapter StatusEngineClient) *StatusReporter {
	return &StatusReporter{Adapter: adapter}
}

// Resolve finds exactly one managed container matching opts, searching
// every enumerated context concurrently (stopengine's pattern).
func (r *StatusReporter) Resolve(ctx context.Context, opts StatusOptions) (contextName, name string, err error) {
	contexts := r.Adapter.EnumerateContexts(ctx)

	type match struct {
		contextName string
		name        string
	}
	var mu sync.Mutex
	var matches []match

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range contexts {
		c := c
		g.Go(func() error {
			containers, err := r.Adapter.ListContainersByLabel(gctx, c, common.LabelPrefix+"managed", "true")
			if err != nil {
				return nil
			}
			for _, ctr := range containers {
				n := firstName(ctr)
				if !statusMatches(ctr, n, opts) {
					continue
				}
				mu.Lock()
				matches = append(matches, match{contextName: c, name: n})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", "", err
	}

	switch len(matches) {
	case 0:
		return "", "", ctnrerr.New(ctnrerr.CategoryEnvironment, ctnrerr.CodeNotManaged, "no managed container matched")
	case 1:
		return matches[0].contextName, matches[0].name, nil
	default:
		var locs []string
		for _, m := range matches {
			locs = append(locs, m.contextName)
		}
		return "", "", ctnrerr.New(ctnrerr.CategoryEnvironment, ctnrerr.CodeAmbiguous,
			fmt.Sprintf("container is ambiguous across contexts: %s", strings.Join(locs, ", ")))
	}
}

func statusMatches(c container.Summary, name string, opts StatusOptions) bool {
	switch {
	case opts.Container != "":
		return name == opts.Container
	case opts.Workspace != "":
		return c.Labels[common.LabelPrefix+"workspace"] == opts.Workspace
	case opts.CWD != "":
		return c.Labels[common.LabelPrefix+"workspace"] == common.SanitizeWorkspaceName(common.WorkspaceName(opts.CWD))
	default:
		return false
	}
}

func firstName(c container.Summary) string {
	if len(c.Names) == 0 {
		return c.ID
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

// Report resolves a single container and builds its StatusReport. The
// managed label is re-checked on the inspected container (not just the
// list filter) per spec.md §4.10's "requires the managed label to be
// exactly true".
func (r *StatusReporter) Report(ctx context.Context, opts StatusOptions) (StatusReport, error) {
	contextName, name, err := r.Resolve(ctx, opts)
	if err != nil {
		return StatusReport{}, err
	}

	info, err := r.Adapter.InspectContainer(ctx, contextName, name)
	if err != nil {
		return StatusReport{}, fmt.Errorf("inspect %s: %w", name, err)
	}
	if info.Config == nil || info.Config.Labels[common.LabelPrefix+"managed"] != "true" {
		return StatusReport{}, ctnrerr.New(ctnrerr.CategoryEnvironment, ctnrerr.CodeNotManaged,
			fmt.Sprintf("container %q is not managed", name))
	}

	report := StatusReport{
		ContextName: contextName,
		Name:        name,
		Status:      inspectStatus(info),
		Image:       info.Config.Image,
	}

	if info.State != nil && info.State.Running {
		if started, ok := parseTime(info.State.StartedAt); ok {
			report.Uptime = formatUptime(time.Since(started))
		}
		if mem, cpu, ok := r.statsSnapshot(ctx, contextName, name); ok {
			report.MemUsage = mem
			report.CPUPerc = cpu
		}
	}

	return report, nil
}

func inspectStatus(info container.InspectResponse) string {
	if info.State == nil {
		return "unknown"
	}
	return info.State.Status
}

func parseTime(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// formatUptime buckets a duration as "XdYhZm" / "YhZm" / "Zm".
func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// statsSnapshot runs `stats --no-stream` and parses the MemUsage/CPUPerc
// columns out of its table output.
func (r *StatusReporter) statsSnapshot(ctx context.Context, contextName, name string) (mem, cpu string, ok bool) {
	res, err := r.Adapter.Capture(ctx, contextName, "stats", "--no-stream",
		"--format", "{{.MemUsage}}|{{.CPUPerc}}", name)
	if err != nil || res.ExitCode != 0 {
		return "", "", false
	}
	line := strings.TrimSpace(res.Stdout)
	parts := strings.SplitN(line, "|", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}
