// Package gcengine implements age-based pruning of managed containers and,
// optionally, their images (C15).
package gcengine

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"

	"github.com/containai/cai/internal/common"
)

// EngineClient is the narrowed slice of *engine.Adapter the GC engine needs.
type EngineClient interface {
	ListManagedContainers(ctx context.Context, contextName string) ([]container.Summary, error)
	InspectContainer(ctx context.Context, contextName, nameOrID string) (container.InspectResponse, error)
	RemoveContainer(ctx context.Context, contextName, nameOrID string) error
	ListImages(ctx context.Context, contextName string) ([]image.Summary, error)
	RemoveImage(ctx context.Context, contextName, id string) error
}

// Options configures one GC run.
type Options struct {
	ContextName string
	Age         string // grammar <int>(d|h), default "30d"
	DryRun      bool
	Force       bool
	Images      bool
	IsTTY       bool
	Confirm     func(prompt string) bool
}

// Result summarizes a GC run.
type Result struct {
	Removed        []string
	Failed         []string
	ImagesRemoved  []string
	ImagesFailed   []string
	Skipped        int
}

// Engine runs the pruning algorithm in spec.md §4.8.
type Engine struct {
	Adapter EngineClient
	Stdout  io.Writer
}

// New creates an Engine.
func New(adapter EngineClient, stdout io.Writer) *Engine {
	return &Engine{Adapter: adapter, Stdout: stdout}
}

// ParseAge parses the `<int>(d|h)` grammar, case-insensitively.
func ParseAge(s string) (time.Duration, error) {
	if s == "" {
		s = "30d"
	}
	lower := strings.ToLower(s)
	unit := lower[len(lower)-1:]
	numPart := lower[:len(lower)-1]
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, fmt.Errorf("invalid age %q: %w", s, err)
	}
	switch unit {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid age %q: unit must be d or h", s)
	}
}

type candidate struct {
	id        string
	name      string
	keep      bool
	running   bool
	reference time.Time
}

// Run enumerates managed containers, filters by the age/keep/running rules,
// confirms, removes, and optionally sweeps owned images.
func (e *Engine) Run(ctx context.Context, opts Options) (Result, error) {
	maxAge, err := ParseAge(opts.Age)
	if err != nil {
		return Result{}, err
	}

	containers, err := e.Adapter.ListManagedContainers(ctx, opts.ContextName)
	if err != nil {
		return Result{}, fmt.Errorf("list managed containers: %w", err)
	}

	now := time.Now()
	var result Result
	var targets []candidate

	for _, c := range containers {
		info, err := e.Adapter.InspectContainer(ctx, opts.ContextName, c.ID)
		if err != nil {
			result.Failed = append(result.Failed, firstName(c))
			continue
		}

		cand := candidate{
			id:      c.ID,
			name:    firstName(c),
			keep:    info.Config != nil && info.Config.Labels[common.LabelPrefix+"keep"] == "true",
			running: info.State != nil && info.State.Running,
		}
		cand.reference = ageReference(info)

		if cand.running || cand.keep {
			result.Skipped++
			continue
		}
		if now.Sub(cand.reference) < maxAge {
			result.Skipped++
			continue
		}
		targets = append(targets, cand)
	}

	if len(targets) == 0 {
		return result, nil
	}

	if !opts.DryRun && !opts.Force {
		if !opts.IsTTY {
			return result, fmt.Errorf("refusing to remove %d containers non-interactively without --force", len(targets))
		}
		confirm := opts.Confirm
		if confirm == nil {
			confirm = func(string) bool { return false }
		}
		if !confirm(fmt.Sprintf("About to remove %d containers. Continue? [y/N]", len(targets))) {
			return result, nil
		}
	}

	for _, c := range targets {
		if opts.DryRun {
			result.Removed = append(result.Removed, c.name)
			continue
		}
		if err := e.Adapter.RemoveContainer(ctx, opts.ContextName, c.id); err != nil {
			result.Failed = append(result.Failed, c.name)
			continue
		}
		result.Removed = append(result.Removed, c.name)
	}

	if opts.Images && (opts.Force || opts.DryRun) {
		e.sweepImages(ctx, opts, &result)
	}

	return result, nil
}

func (e *Engine) sweepImages(ctx context.Context, opts Options, result *Result) {
	images, err := e.Adapter.ListImages(ctx, opts.ContextName)
	if err != nil {
		return
	}
	for _, img := range images {
		for _, repoTag := range img.RepoTags {
			if !hasManagedPrefix(repoTag) {
				continue
			}
			if opts.DryRun {
				result.ImagesRemoved = append(result.ImagesRemoved, repoTag)
				break
			}
			if err := e.Adapter.RemoveImage(ctx, opts.ContextName, img.ID); err != nil {
				result.ImagesFailed = append(result.ImagesFailed, repoTag)
			} else {
				result.ImagesRemoved = append(result.ImagesRemoved, repoTag)
			}
			break
		}
	}
}

func hasManagedPrefix(repoTag string) bool {
	for _, prefix := range common.ManagedImagePrefixes {
		if strings.HasPrefix(repoTag, prefix) {
			return true
		}
	}
	return false
}

// zeroFinishedAt is Docker's sentinel value for "never finished".
const zeroFinishedAt = "0001-01-01T00:00:00Z"

// ageReference returns FinishedAt when it is set to a real value, else
// falls back to Created (spec.md §4.8 step 4).
func ageReference(info container.InspectResponse) time.Time {
	if info.State != nil && info.State.FinishedAt != "" && info.State.FinishedAt != zeroFinishedAt {
		if t, err := time.Parse(time.RFC3339Nano, info.State.FinishedAt); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, info.Created); err == nil {
		return t
	}
	return time.Time{}
}

func firstName(c container.Summary) string {
	if len(c.Names) == 0 {
		return c.ID
	}
	return strings.TrimPrefix(c.Names[0], "/")
}
