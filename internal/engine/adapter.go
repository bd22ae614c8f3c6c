// Package engine wraps the container-engine CLI (docker), injecting
// --context from a prioritized context list, and resolves which context is
// "managed" (C2, C3).
package engine

import (
	"context"
	"log/slog"
	"strings"

	dockerclient "github.com/docker/docker/client"

	"github.com/containai/cai/internal/procrunner"
)

// ManagedContextNames is the fixed prioritized list probed for the managed
// engine context. The first one that responds to `context inspect` wins.
var ManagedContextNames = []string{"containai-docker", "containai-secure", "docker-containai"}

// DefaultContextSentinel is included by EnumerateContexts for cross-context
// search even though it is never itself "the managed context".
const DefaultContextSentinel = "default"

// Adapter invokes the engine CLI binary, resolving and injecting --context.
type Adapter struct {
	binary string
	runner *procrunner.Runner
	logger *slog.Logger
}

// New creates an Adapter. binary defaults to "docker" when empty.
func New(binary string, logger *slog.Logger) *Adapter {
	if binary == "" {
		binary = "docker"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{binary: binary, runner: procrunner.New(logger), logger: logger}
}

// Binary returns the underlying CLI name ("docker" unless overridden).
func (a *Adapter) Binary() string { return a.binary }

// probeContext runs `<binary> context inspect <name>` and reports success.
func (a *Adapter) probeContext(ctx context.Context, name string) bool {
	res, err := a.runner.Capture(ctx, a.binary, []string{"context", "inspect", name}, nil)
	return err == nil && res.ExitCode == 0
}

// ManagedContext probes ManagedContextNames in order and returns the first
// that exists. ok is false when none responded.
func (a *Adapter) ManagedContext(ctx context.Context) (name string, ok bool) {
	for _, c := range ManagedContextNames {
		if a.probeContext(ctx, c) {
			return c, true
		}
	}
	return "", false
}

// EnumerateContexts returns every probed context that exists plus the
// "default" sentinel, for cross-context search (stop/gc engines).
func (a *Adapter) EnumerateContexts(ctx context.Context) []string {
	var out []string
	for _, c := range ManagedContextNames {
		if a.probeContext(ctx, c) {
			out = append(out, c)
		}
	}
	out = append(out, DefaultContextSentinel)
	return out
}

// withContext prepends --context <name> to args when name is non-empty and
// not already "default" (the sentinel never appears on the wire, since
// omitting --context for "default" lets the engine's own default apply).
func withContext(name string, args []string) []string {
	if name == "" || name == DefaultContextSentinel {
		return args
	}
	return append([]string{"--context", name}, args...)
}

// Capture runs the engine non-interactively and returns its exit code and
// captured stdout/stderr.
func (a *Adapter) Capture(ctx context.Context, contextName string, args ...string) (procrunner.CaptureResult, error) {
	return a.runner.Capture(ctx, a.binary, withContext(contextName, args), nil)
}

// CaptureWithStdin behaves like Capture but feeds stdin to the child, for
// the import engine's `run --rm -i` env-file write.
func (a *Adapter) CaptureWithStdin(ctx context.Context, contextName, stdin string, args ...string) (procrunner.CaptureResult, error) {
	return a.runner.CaptureWithStdin(ctx, a.binary, withContext(contextName, args), nil, stdin)
}

// Interactive runs the engine with stdio inherited from the parent process
// and returns its exit code.
func (a *Adapter) Interactive(ctx context.Context, contextName string, args ...string) (int, error) {
	return a.runner.Interactive(ctx, a.binary, withContext(contextName, args), nil, false)
}

// sdkClientForContext builds a typed Docker SDK client against the named
// context's endpoint, for probes where a typed call is cheaper than
// shelling out (container/volume inspect, listing).
func (a *Adapter) sdkClientForContext(ctx context.Context, contextName string) (*dockerclient.Client, error) {
	res, err := a.Capture(ctx, contextName, "context", "inspect", "--format", "{{.Endpoints.docker.Host}}")
	opts := []dockerclient.Opt{dockerclient.WithAPIVersionNegotiation()}
	if err == nil && res.ExitCode == 0 {
		if host := strings.TrimSpace(res.Stdout); host != "" {
			opts = append(opts, dockerclient.WithHost(host))
		} else {
			opts = append(opts, dockerclient.FromEnv)
		}
	} else {
		opts = append(opts, dockerclient.FromEnv)
	}
	return dockerclient.NewClientWithOpts(opts...)
}
