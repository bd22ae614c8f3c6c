// Package stopengine resolves stop targets across every enumerated engine
// context, optionally exports their data volumes first, then stops and
// removes them (C16).
package stopengine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"golang.org/x/sync/errgroup"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/ctnrerr"
)

// EngineClient is the narrowed slice of *engine.Adapter the stop engine needs.
type EngineClient interface {
	EnumerateContexts(ctx context.Context) []string
	ListContainersByLabel(ctx context.Context, contextName, label, value string) ([]container.Summary, error)
	StopContainer(ctx context.Context, contextName, nameOrID string) error
	RemoveContainer(ctx context.Context, contextName, nameOrID string) error
}

// Exporter runs the pre-stop export path for one target (C14's export
// branch). Errors are treated as export failures per spec.md §4.9.
type Exporter interface {
	Export(ctx context.Context, contextName, containerName string) error
}

// Options configures one stop run. Exactly one of All, Container, or
// WorkspaceName should be set by the caller.
type Options struct {
	All           bool
	Container     string
	WorkspaceName string
	Export        bool
	Force         bool
	Remove        bool
}

// Target is a single resolved (context, container) pair.
type Target struct {
	ContextName   string
	ContainerName string
}

// Result aggregates per-target outcomes.
type Result struct {
	Stopped []Target
	Failed  []Target
}

// Engine runs the stop algorithm in spec.md §4.9.
type Engine struct {
	Adapter  EngineClient
	Exporter Exporter
}

// New creates an Engine.
func New(adapter EngineClient, exporter Exporter) *Engine {
	return &Engine{Adapter: adapter, Exporter: exporter}
}

// ValidateOptions enforces the mutual-exclusion rules spec.md §4.9 names.
func ValidateOptions(opts Options) error {
	if opts.All && opts.Container != "" {
		return ctnrerr.New(ctnrerr.CategoryUser, ctnrerr.CodeMutexFlags, "--all and --container are mutually exclusive")
	}
	if opts.All && opts.Export {
		return ctnrerr.New(ctnrerr.CategoryUser, ctnrerr.CodeMutexFlags, "--all and --export are mutually exclusive")
	}
	return nil
}

// Resolve enumerates all contexts concurrently and returns the set of
// (context, containerName) pairs matching opts. A named --container that
// matches in more than one context is an ambiguity error.
func (e *Engine) Resolve(ctx context.Context, opts Options) ([]Target, error) {
	contexts := e.Adapter.EnumerateContexts(ctx)

	var mu sync.Mutex
	var targets []Target

	g, gctx := errgroup.WithContext(ctx)
	for _, contextName := range contexts {
		contextName := contextName
		g.Go(func() error {
			containers, err := e.Adapter.ListContainersByLabel(gctx, contextName, common.LabelPrefix+"managed", "true")
			if err != nil {
				return nil
			}
			for _, c := range containers {
				name := firstName(c)
				if !matches(c, name, opts) {
					continue
				}
				mu.Lock()
				targets = append(targets, Target{ContextName: contextName, ContainerName: name})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if opts.Container != "" {
		if len(targets) > 1 {
			var locs []string
			for _, t := range targets {
				locs = append(locs, t.ContextName)
			}
			return nil, ctnrerr.New(ctnrerr.CategoryUser, ctnrerr.CodeAmbiguous,
				fmt.Sprintf("container %q is ambiguous across contexts: %s", opts.Container, strings.Join(locs, ", ")))
		}
	}

	return targets, nil
}

func matches(c container.Summary, name string, opts Options) bool {
	switch {
	case opts.All:
		return true
	case opts.Container != "":
		return name == opts.Container
	case opts.WorkspaceName != "":
		return c.Labels[common.LabelPrefix+"workspace"] == opts.WorkspaceName
	default:
		return false
	}
}

// Run resolves targets, optionally exports, then stops/removes them.
func (e *Engine) Run(ctx context.Context, opts Options) (Result, error) {
	if err := ValidateOptions(opts); err != nil {
		return Result{}, err
	}

	targets, err := e.Resolve(ctx, opts)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, t := range targets {
		if opts.Export && e.Exporter != nil {
			if err := e.Exporter.Export(ctx, t.ContextName, t.ContainerName); err != nil && !opts.Force {
				result.Failed = append(result.Failed, t)
				continue
			}
		}

		if err := e.Adapter.StopContainer(ctx, t.ContextName, t.ContainerName); err != nil {
			result.Failed = append(result.Failed, t)
			continue
		}

		if opts.Remove {
			if err := e.Adapter.RemoveContainer(ctx, t.ContextName, t.ContainerName); err != nil {
				result.Failed = append(result.Failed, t)
				continue
			}
		}

		result.Stopped = append(result.Stopped, t)
	}

	if len(result.Failed) > 0 {
		return result, fmt.Errorf("%d of %d targets failed", len(result.Failed), len(targets))
	}
	return result, nil
}

func firstName(c container.Summary) string {
	if len(c.Names) == 0 {
		return c.ID
	}
	return strings.TrimPrefix(c.Names[0], "/")
}
