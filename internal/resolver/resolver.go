// Package resolver maps a workspace to its managed container name (C10).
package resolver

import (
	"context"
	"strings"

	"github.com/docker/docker/api/types/container"

	"github.com/containai/cai/internal/common"
	"github.com/containai/cai/internal/ctnrerr"
)

// EngineClient is the narrowed slice of *engine.Adapter the resolver needs.
type EngineClient interface {
	InspectContainer(ctx context.Context, contextName, nameOrID string) (container.InspectResponse, error)
	ListContainersByLabel(ctx context.Context, contextName, label, value string) ([]container.Summary, error)
}

// Resolver implements spec.md §4.6's workspace-to-container lookup.
type Resolver struct {
	Adapter EngineClient
}

// New creates a Resolver.
func New(adapter EngineClient) *Resolver {
	return &Resolver{Adapter: adapter}
}

// Resolve returns the managed container name for workspaceName. If
// configuredContainerName is non-empty and inspectable, it wins outright.
// Otherwise containers are looked up by the containai.workspace label: zero
// matches returns ("", nil); more than one is an ambiguity error; exactly
// one resolves via its trimmed name.
func (r *Resolver) Resolve(ctx context.Context, contextName, workspaceName, configuredContainerName string) (string, error) {
	if configuredContainerName != "" {
		if info, err := r.Adapter.InspectContainer(ctx, contextName, configuredContainerName); err == nil {
			return trimName(info.Name), nil
		}
	}

	containers, err := r.Adapter.ListContainersByLabel(ctx, contextName, common.LabelPrefix+"workspace", workspaceName)
	if err != nil {
		return "", ctnrerr.Wrap(err, ctnrerr.CategoryEngine, ctnrerr.CodeEngineFailed, "list containers by workspace")
	}

	switch len(containers) {
	case 0:
		return "", nil
	case 1:
		return firstName(containers[0]), nil
	default:
		return "", ctnrerr.Newf(ctnrerr.CategoryUser, ctnrerr.CodeAmbiguous, "multiple containers match workspace %q", workspaceName)
	}
}

func trimName(name string) string {
	return strings.TrimPrefix(name, "/")
}

func firstName(c container.Summary) string {
	if len(c.Names) == 0 {
		return ""
	}
	return trimName(c.Names[0])
}
